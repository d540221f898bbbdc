package vision

import (
	"context"

	"omniwizz/internal/domain"
)

const staticProviderName = "static"

var staticOutputs = map[domain.Language]map[Task]string{
	domain.LanguageEnglish: {
		TaskLyrics: "**Music Prompt:** Calm piano, soft ambient pads, morning breeze, light percussion\n\n" +
			"**Lyrics:**\n" +
			"Waves gently touch the shore\n" +
			"Sunrise colors fill the air\n" +
			"Mountains watching from afar\n" +
			"Clouds drift like cotton dreams\n" +
			"Heartbeats match the morning breeze\n" +
			"Footprints mark the golden sand\n" +
			"Melody flows from ocean winds\n" +
			"Distant peaks hum harmonies\n" +
			"Seagulls glide above the waves\n" +
			"Whispers of the coming day\n" +
			"Warmth wraps around my soul\n" +
			"Hope awakens with the light",
		TaskTags: "**inspirational tags**: [cathedral blaze shimmer, gilded vault echoes, stained glass resonance, " +
			"emberfall choir drift, marble dusk pulse, arcane reverb bloom, lightfall crescendo, sacred hush texture, " +
			"vaulted halo drift, chandelier thrum, gold-draped silence, catacomb bass undertow, divine delay shimmer, " +
			"twilight liturgy pads, solemn flare pulse, celestial chamber bloom, lightbeam swell, echo altar mist, " +
			"granite choir ghost, ritual flame rhythm, midnight votive haze, gothic cadence glint, glory dusk rise, " +
			"archlight ritual drone]",
		TaskEntities: `["dreamlike sunrise", "soft ocean waves", "golden horizon", "ethereal sky", ` +
			`"mountain silhouettes", "morning haze", "pastel reflections", "serene shoreline"]`,
	},
	domain.LanguageChinese: {
		TaskLyrics: "**音乐风格：** 温柔钢琴，柔和氛围铺底，晨风，轻打击乐\n\n" +
			"**歌词：**\n" +
			"海浪轻抚着沙岸\n" +
			"晨光染亮了天边\n" +
			"远山静静在守望\n" +
			"云朵像棉花般飘散\n" +
			"心跳合着晨风的节拍\n" +
			"脚印留在金色沙滩\n" +
			"旋律随海风流淌\n" +
			"远峰低声和唱\n" +
			"海鸥掠过浪尖\n" +
			"新的一天在耳边低语\n" +
			"温暖包围我的心\n" +
			"希望随光醒来",
		TaskTags: "**灵感标签**: [雨后青苔, 石径水声节拍, 心跳回声, 液态节奏瀑布, 湖面晚风拨弦, 极光, 暮色微光, 苔原低语]",
		TaskEntities: `["梦幻日出", "柔和海浪", "金色地平线", "空灵天空", "山峦剪影", "晨雾", "粉彩倒影", "宁静海岸"]`,
	},
}

// Static returns fixed, well-formed replies. It backs test mode and the
// degraded path when a live generator fails.
type Static struct{}

func NewStatic() *Static {
	return &Static{}
}

func (s *Static) Name() string { return staticProviderName }

func (s *Static) Generate(ctx context.Context, inst Instruction) (string, error) {
	if _, err := ParamsFor(inst.Task); err != nil {
		return "", err
	}
	outputs, ok := staticOutputs[inst.Language]
	if !ok {
		outputs = staticOutputs[domain.LanguageEnglish]
	}
	return outputs[inst.Task], nil
}

var _ Generator = (*Static)(nil)
