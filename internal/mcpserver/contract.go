package mcpserver

// RecordFormatContract describes the canonical markdown record format that
// LLM consumers should follow when creating or updating records.
const RecordFormatContract = `# AIKnowSys Record Format Contract

Every markdown record MUST follow this structure. The frontmatter block is
machine-owned: mutation tools regenerate it verbatim from the index record.
The body below it is human-owned prose and is never mirrored into the index.

## Structure

` + "```" + `markdown
---
id: 2025-01-20-auth-refactor      # REQUIRED - filename stem, unique per type
status: ACTIVE                    # REQUIRED - see per-type statuses below
topics:                           # OPTIONAL - free-text tags, order-irrelevant
  - storage
  - auth
created: 2025-01-20T09:30:00Z     # RFC 3339, set on creation
updated: 2025-01-21T14:00:00Z     # RFC 3339, bumped on every mutation
---

Free-form markdown body.
` + "```" + `

## Record types and statuses

- **session** (sessions/): IN_PROGRESS, COMPLETE, ABANDONED.
  Extra fields: ` + "`" + `duration_minutes` + "`" + ` (integer), ` + "`" + `phases` + "`" + ` (list of strings).
- **plan** (plans/): PLANNED, ACTIVE, PAUSED, COMPLETE, CANCELLED.
  Extra fields: ` + "`" + `author` + "`" + `, ` + "`" + `priority` + "`" + `.
- **pattern** (patterns/): CANDIDATE, PROVEN, DEPRECATED.

## Rules

1. **The frontmatter fences are the first thing in the file.** An opening
   ` + "`" + `---` + "`" + ` without a closing one makes the file malformed and it will be
   skipped at rebuild time.
2. **Ids are lowercase slugs** (letters, digits, ` + "`" + `.` + "`" + `, ` + "`" + `_` + "`" + `, ` + "`" + `-` + "`" + `). Sessions
   default to a ` + "`" + `YYYY-MM-DD-HHMMSS` + "`" + ` stamp when no id is given.
3. **Unknown frontmatter fields are preserved.** You may add fields of your
   own; updates carry them through unchanged.
4. **The index is a cache.** Markdown is the source of truth: editing a
   file by hand is fine, the next query reconciles the index automatically.
5. **Files are UTF-8** with a trailing newline, named ` + "`" + `<id>.md` + "`" + ` inside
   their type directory.
6. Archived records live under ` + "`" + `archive/` + "`" + ` with their frontmatter intact;
   they are out of the live index but stay greppable.
`
