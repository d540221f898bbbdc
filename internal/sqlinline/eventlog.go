package sqlinline

const QCreateMigrations = `--sql 8c3e0b52-4d1f-4a97-b6e8-2f5a9c7d1e03
create table if not exists _migrations (
    name text primary key,
    applied_at timestamptz not null default now()
);
`

const QMigrationApplied = `--sql e7a41c9d-2b6f-4e85-93d0-5c8b1f4a6e27
select exists(select 1 from _migrations where name = $1::text);
`

const QRecordMigration = `--sql 2f9d6b3e-81c4-4a5f-a7e2-0b3c8d5f9a16
insert into _migrations(name) values ($1::text)
on conflict (name) do nothing;
`

const QEnsureSession = `--sql a5c82e1f-6d3b-4f70-8e94-7b1d0c2a5f38
insert into sessions(id, started_at, user_agent, locale, country)
values ($1::text, $2::timestamptz, $3::text, $4::text, $5::text)
on conflict (id) do nothing;
`

const QEndSession = `--sql 3d7f1a6c-9e2b-4c58-b0a3-e6f4d8c1b927
update sessions set ended_at = $2::timestamptz
where id = $1::text;
`

const QInsertEvents = `--sql f1b6c0d8-4a3e-4e29-8c75-9d2a7e3b5c41
insert into events(session_id, ts, type, payload)
select $1::text, t.ts, t.type, t.payload::jsonb
from unnest($2::timestamptz[], $3::text[], $4::text[]) as t(ts, type, payload);
`

const QListEvents = `--sql 6e0a9f3b-c7d2-4b16-a8f5-1e4c3b9d7a60
select id, session_id, ts, type, payload::text
from events
where session_id = $1::text
order by id
limit nullif($2::int, 0);
`
