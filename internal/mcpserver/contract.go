package mcpserver

// PostFormatContract describes the Markdown post format that LLM
// consumers should follow when drafting blog posts.
const PostFormatContract = `# Furrow Post Format

Every blog post is a Markdown document with a YAML frontmatter block.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # REQUIRED
description: One-sentence summary  # used for cards and meta tags
date: 2025-01-15                   # ISO-8601 date or datetime
image: /blog/cover.jpg             # OPTIONAL – see Images below
authors:
  - Jane Doe
categories:                        # at least one for CMS posts
  - agritech
tags:
  - sensors
draft: false
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **Frontmatter comes first.** The ` + "`" + `---` + "`" + ` fences must open the document.
2. **` + "`" + `title` + "`" + ` is required.** Posts without it are rejected.
3. **Slugs** are lowercase letters, digits and hyphens (` + "`" + `^[a-z0-9-]+$` + "`" + `).
   The slug becomes the URL: ` + "`" + `/agritech/<slug>/` + "`" + ` for blog posts.
4. **Categories and tags** drive taxonomy pages and the related-posts list;
   reuse existing values (see ` + "`" + `list_taxonomy` + "`" + `) instead of inventing near-duplicates.
5. **Drafts** (` + "`" + `draft: true` + "`" + `) are stored but never published or indexed.
6. **Encoding** is UTF-8 with a trailing newline.

## Images

- Upload with the ` + "`" + `upload_image` + "`" + ` tool (base64 data URI). It returns a
  ` + "`" + `markdownImage` + "`" + ` snippet ready to paste into the body.
- Supported formats: jpeg, png, gif, webp. Large jpeg/png images are scaled down.

## Example

` + "```" + `markdown
---
title: Soil moisture sensors in practice
description: What a season of field data taught us.
date: 2025-01-20
authors:
  - Jane Doe
categories:
  - agritech
tags:
  - sensors
  - irrigation
draft: false
---

# Soil moisture sensors in practice

![Sensor array](/blog/1737331200000-a1b2c3d4e.jpg)
` + "```" + `
`
