package sqlinline

const QEnsureMintJobsTable = `--sql 8d0f6a1e-5b7c-4e21-9a3f-2c4e7b91d0a5
create table if not exists mint_jobs (
    id               uuid primary key,
    name             text not null,
    description      text not null,
    stage            text not null,
    content_id       text not null default '',
    token_uri        text not null default '',
    transaction_hash text not null default '',
    error_message    text not null default '',
    created_at       timestamptz not null default now(),
    updated_at       timestamptz not null default now()
);
`

const QInsertMintJob = `--sql 3b1e9c47-0f2d-4a8b-b6e5-71d2c9a4f380
insert into mint_jobs (id, name, description, stage)
values ($1::uuid, $2, $3, $4)
on conflict (id) do update
set name = excluded.name,
    description = excluded.description,
    stage = excluded.stage,
    content_id = '',
    token_uri = '',
    transaction_hash = '',
    error_message = '',
    updated_at = now();
`

const QUpdateMintJobStage = `--sql c7a52e10-94bd-4f6e-8d31-0be6f5a2c9d4
update mint_jobs
set stage = $2,
    content_id = coalesce(nullif($3, ''), content_id),
    token_uri = coalesce(nullif($4, ''), token_uri),
    transaction_hash = coalesce(nullif($5, ''), transaction_hash),
    error_message = $6,
    updated_at = now()
where id = $1::uuid;
`

const QSelectMintJob = `--sql 5e8d3f92-a1c6-4b07-9e2a-d4f1b6c83e17
select id::text, name, description, stage, content_id, token_uri, transaction_hash, error_message, created_at, updated_at
from mint_jobs
where id = $1::uuid;
`
