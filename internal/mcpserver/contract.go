package mcpserver

// ChartFormatContract describes the chart file format that LLM consumers
// should follow when creating charts.
const ChartFormatContract = `# numeral Chart Format Contract

A chart is a UTF-8 text file whose path ends in ` + "`" + `.chart` + "`" + `.

## Structure

` + "```" + `
---
title: Autumn Leaves     # OPTIONAL - falls back to the first "# " heading
key: Bb                  # OPTIONAL - tonic, defaults to the server key
composer: Joseph Kosma   # OPTIONAL
tags:                    # OPTIONAL - YAML list
  - standard
---

A: | Cm7 | F7 | Bbmaj7 | Ebmaj7 |
   | Am7b5 | D7 | Gm7 | |
` + "```" + `

## Rules

1. **Frontmatter** is YAML between ` + "`" + `---` + "`" + ` fences at the top of the file.
2. **key** is a note name: a letter A-G with an optional ` + "`" + `#` + "`" + ` or ` + "`" + `b` + "`" + `.
   Write the major tonic even for minor tunes.
3. **Bars** are delimited by ` + "`" + `|` + "`" + `. Text before the first ` + "`" + `|` + "`" + ` of a line is a
   section label and is ignored. An empty bar repeats the previous harmony.
4. **Chords** inside a bar are separated by spaces. Bar numbers continue across lines.
5. **Chord symbols**: root ` + "`" + `A-G` + "`" + ` with optional ` + "`" + `#` + "`" + `/` + "`" + `b` + "`" + `, then one of
   ` + "`" + `maj7` + "`" + ` (or none), ` + "`" + `7` + "`" + `, ` + "`" + `m7` + "`" + `/` + "`" + `m` + "`" + `, ` + "`" + `m7b5` + "`" + `/` + "`" + `ø` + "`" + `, ` + "`" + `dim7` + "`" + `/` + "`" + `o7` + "`" + `.
   Extensions after the quality are ignored, so ` + "`" + `G7b9` + "`" + ` reads as ` + "`" + `G7` + "`" + `.
6. Every chord must parse. Charts that do not are rejected by ` + "`" + `create_chart` + "`" + `.
7. Lines without ` + "`" + `|` + "`" + ` are free text; ` + "`" + `#tag` + "`" + ` words in them become tags.

## Labels

Analysis labels chords with Roman numerals relative to the key: ` + "`" + `ii V7 I` + "`" + `.
A label with a slash names a local key: ` + "`" + `V7/ii` + "`" + ` is the dominant of ii.
` + "`" + `BD7` + "`" + ` is the backdoor dominant and ` + "`" + `TT7` + "`" + ` the tritone substitute.
`
