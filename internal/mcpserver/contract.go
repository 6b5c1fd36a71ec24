package mcpserver

// NoteFormatContract describes the canonical Markdown note format that
// LLM consumers should follow when creating or updating notes.
const NoteFormatContract = `# Othala Note Format Contract

Every Markdown note stored in Othala MUST follow this structure.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # REQUIRED – used in search and graph queries
tags:                               # OPTIONAL – YAML list; used for filtering
  - tag-one
  - tag-two
created: 2025-01-15                 # OPTIONAL – ISO-8601 date or datetime
---

Body text in standard Markdown.

Use [[wikilinks]] to reference other notes (without .md extension).
Use [[target|alias]] for display text that differs from the target.
` + "```" + `

## Rules

1. **YAML frontmatter is optional but recommended.** When present the ` + "```" + `---` + "```" + ` fences
   must be the first thing in the file (no leading blank lines). Notes without
   frontmatter fall back to the filename stem as their title.
2. **` + "`" + `title` + "`" + ` field** is the primary display name everywhere it is set.
3. **Tags** are lowercase, kebab-case (e.g. ` + "`" + `project-x` + "`" + `, ` + "`" + `meeting-notes` + "`" + `).
   They may come from frontmatter or inline ` + "`" + `#hashtags` + "`" + ` in the body; both count.
4. **Wikilinks** use double brackets: ` + "`" + `[[other-note]]` + "`" + `. A bare target resolves
   relative to the note's own folder; prefix with ` + "`" + `/` + "`" + ` to resolve from the vault
   root: ` + "`" + `[[/folder/note]]` + "`" + `. No ` + "`" + `.md` + "`" + ` extension.
5. **Markdown links** ` + "`" + `[text](target.md)` + "`" + ` to other notes are tracked in the link
   graph too; links to ` + "`" + `http://` + "`" + ` and ` + "`" + `https://` + "`" + ` URLs are kept but never resolved.
6. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
7. **Encoding** is UTF-8 with a trailing newline.
8. **No HTML** unless absolutely necessary; prefer Markdown equivalents.

## Example

` + "```" + `markdown
---
title: Weekly standup 2025-01-20
tags:
  - meeting-notes
  - project-x
created: 2025-01-20
---

# Weekly standup 2025-01-20

Attendees: Alice, Bob. #standup

## Action items

- [[alice]] to review the [[design-doc]]
- Bob to update [[/project-x/roadmap|the roadmap]]
` + "```" + `
`
