package vision

import (
	"fmt"
	"strings"

	"omniwizz/internal/domain"
)

const lyricsTemplateEN = `Here is an example of describing an image musically and writing lyrics for it.

**Music Prompt:**
Epic fantasy orchestra, slow build-up, thunderstorm ambience, Celtic flute melody

**Lyrics:**
Your shadow dances on the dashboard shrine
Neon ghosts in gasoline rain
I hear your laughter down the midnight train

Now look at the attached image and write a new music prompt and a complete set of lyrics in English only.
Write at least 12 lines of lyrics with a consistent emotional tone. Follow the format of the example; timestamps are not needed.

%sStart with **Music Prompt:**, then write **Lyrics:**.`

const lyricsTemplateZH = `以下示例展示如何根据图像写出音乐风格和歌词。

**音乐风格：**
伤感氛围电子，慢节奏，钢琴伴奏，雨声背景

**歌词：**
雨滴敲打窗前的寂静
街灯映出你的背影
我在梦中等你的回应

现在请根据附带的图像写出新的音乐风格描述和完整歌词。歌词需贴合图像的情绪与节奏，不少于12行，格式与示例一致，无需时间戳。

%s请以 **音乐风格：** 开始，然后写 **歌词：**。`

const tagsTemplateEN = `You are a multimodal creativity assistant for music producers.
Study the attached image: its mood, visual features, atmosphere and the sounds it suggests.
Write at least 24 varied inspirational tags that mix visual elements (color, scenery, light, motion, emotion), textures (surfaces, ambience, energy) and production ideas (timbre, instrumentation, rhythm, structure).
Do not stick to existing genres. Examples: ["crystal sunrise shimmer", "echo-lag surf textures", "aurora pad resonance", "post-rain moss", "liquid dusk glow"]

Formatting rules:
1. Output only this line:
**inspirational tags**: ["tag1", "tag2", "tag3", "tag4", "tag5", "tag6", "tag7", "tag8"]
2. No explanation or commentary before or after it.
3. Do not number the tags; separate them with commas inside the brackets.`

const tagsTemplateZH = `你是一名面向音乐制作人的多模态灵感助手。
请观察附带的图像，分析其情绪、视觉特征、氛围以及它让人联想到的声音。
生成至少 24 个多样化的灵感标签，混合视觉元素（颜色、景观、光影、动态、情感）、质感印象（表面、氛围、能量）和制作灵感（音色、乐器、节奏、结构）。
不要局限于已有流派。例如：["雨后青苔", "石径水声节拍", "心跳回声", "极光", "暮色微光"]

格式要求：
1. 仅输出这一行：
**灵感标签**: ["标签1", "标签2", "标签3", "标签4", "标签5", "标签6", "标签7", "标签8"]
2. 不要添加任何解释或额外文字。
3. 标签之间用英文逗号分隔，不要编号。`

const entitiesTemplateEN = `You are a multimodal creative assistant. Extract at least 24 concise keywords or short phrases from the attached image that describe its abstract, stylistic or emotional qualities: atmosphere, textures, colors, visual style and mood.
Avoid literal object names, names of people or places, brands and factual labels.
If a keyword could imply a real person, face, body part or real-world object, make it abstract by appending a descriptor such as "illustration", "line art", "sketch" or "painting".

Output only a JSON array of strings in English, for example:
["dreamlike sunrise", "rolling ocean texture", "soft gradient sky", "ethereal clouds", "warm golden glow", "pastel horizon"]`

const entitiesTemplateZH = `你是一名多模态创意助手。请从附带的图像中提取至少 24 个简洁的关键词或短语，描述其抽象概念、风格、氛围、质感、色彩或情感。
避免具体物体名称、人物姓名、地名、品牌或其他真实标识。
如果关键词可能暗示真实人物、面孔、身体部位或现实物体，请添加“插画”、“简笔画”、“国画”等描述词使其抽象化。

只输出中文 JSON 字符串数组，例如：
["梦幻日出", "翻滚的海浪纹理", "柔和的渐变天空", "空灵的云朵", "温暖的金色光辉", "柔和的地平线"]`

// BuildPrompt renders the text part of an instruction. Languages other than
// Chinese use the English templates.
func BuildPrompt(inst Instruction) (string, error) {
	zh := inst.Language == domain.LanguageChinese
	switch inst.Task {
	case TaskLyrics:
		if zh {
			return fmt.Sprintf(lyricsTemplateZH, chordLine(inst.Chords, true)), nil
		}
		return fmt.Sprintf(lyricsTemplateEN, chordLine(inst.Chords, false)), nil
	case TaskTags:
		if zh {
			return tagsTemplateZH, nil
		}
		return tagsTemplateEN, nil
	case TaskEntities:
		if zh {
			return entitiesTemplateZH, nil
		}
		return entitiesTemplateEN, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTask, inst.Task)
	}
}

func chordLine(hint *ChordHint, zh bool) string {
	if hint == nil || len(hint.Chords) == 0 {
		return ""
	}
	progression := strings.Join(hint.Chords, " - ")
	if zh {
		return fmt.Sprintf("用户上传的音频为%s调，和弦进行：%s。请结合这些信息。\n\n", hint.Key, progression)
	}
	return fmt.Sprintf("The user's audio is in the key of %s with the chord progression %s. Use it as inspiration.\n\n", hint.Key, progression)
}
