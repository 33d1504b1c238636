package sqlinline

// QSelectProviderKey returns the stored API key for a provider
// (anthropic, pexels or elevenlabs).
const QSelectProviderKey = `--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7
select token
from integration_tokens
where provider = $1::text
  and length(trim(token)) > 0
limit 1;
`

const QUpsertProviderKey = `--sql 6d4f5660-0f7c-4f73-a1f3-9ab6d5e6c7a3
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`

const QCreateIntegrationTokens = `--sql 97a8b544-a999-495c-a612-0649a2a14743
create table if not exists integration_tokens (
    id uuid primary key,
    provider text not null unique,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`
