package sqlinline

const QCreateVideoJobs = `--sql c2ee7ac2-9faa-4a16-baf1-724fe095f9bf
create table if not exists video_jobs (
    id text primary key,
    status text not null,
    phase text not null,
    current_step integer not null default 0,
    snapshot jsonb not null,
    created_at timestamptz not null,
    updated_at timestamptz not null default now()
);
`

// QUpsertVideoJob mirrors the latest in-memory snapshot of a job.
const QUpsertVideoJob = `--sql 8eba2118-e79e-4037-9b49-dcd305d269a2
insert into video_jobs (id, status, phase, current_step, snapshot, created_at, updated_at)
values ($1::text, $2::text, $3::text, $4::int, $5::jsonb, $6::timestamptz, now())
on conflict (id) do update set
    status = excluded.status,
    phase = excluded.phase,
    current_step = excluded.current_step,
    snapshot = excluded.snapshot,
    updated_at = now();
`
