package mcpserver

// SourceFormatContract describes the YAML source files the transform reads.
// LLM consumers should follow it when authoring or editing categories.
const SourceFormatContract = `# Taxport Source Format

A taxonomy is authored as one core categories file plus a flat directory of
subcategory files. Every core category becomes a concept scheme; every
subcategory node becomes a concept.

## Core categories file

` + "```" + `yaml
categories:
  - id: tech                 # REQUIRED, unique, becomes the scheme id
    name: Technology         # REQUIRED, scheme name
    description: Computing   # OPTIONAL
` + "```" + `

## Subcategory file

One file per scheme, placed in the subcategories directory with a ` + "`" + `.yaml` + "`" + `
extension. Files are processed in file-name order.

` + "```" + `yaml
parent: tech                     # OPTIONAL, id of the owning core category
subcategories:
  - id: software                 # REQUIRED, unique across ALL files
    name: Software               # REQUIRED, preferred label
    description: Programs        # OPTIONAL
    alternativeLabels:           # OPTIONAL synonyms
      - Apps
    subcategories:               # OPTIONAL children, same shape
      - id: databases
        name: Databases
` + "```" + `

## Rules

1. **Ids are global.** A node whose id was already seen (in this or an earlier
   file) is skipped together with its whole subtree.
2. **Top-level nodes** have no broader concept; nested nodes point at their
   direct parent.
3. **Vendor limits** produce warnings, not failures: at most 20 schemes,
   6000 concepts in total, 2000 concepts per scheme and 5 levels of depth.
4. **Encoding** is UTF-8. Files with other extensions are ignored.
`
