package mcpserver

// ChecklistContract describes how work-order checklists are structured so
// that LLM consumers edit them consistently.
const ChecklistContract = `# Work Order Checklist Contract

Every work order carries a flat list of checklist items. Hierarchy is
expressed by text, not by nesting.

## Item fields

` + "```" + `json
{
  "id": "3f2c...",            // stable identifier, assigned by the server
  "task": "Brakes",           // label shown to the mechanic
  "completed": false,
  "completedAt": null,        // RFC 3339 timestamp while completed
  "parentTask": null,         // task label of the parent, null for top-level items
  "notes": "Full brake service"
}
` + "```" + `

## Rules

1. **Top-level items** have no ` + "`" + `parentTask` + "`" + `. Sub-tasks set
   ` + "`" + `parentTask` + "`" + ` to the exact ` + "`" + `task` + "`" + ` text of their parent.
2. **Completing a top-level item** completes every sub-task linked to it. Reopening it
   reopens them. Toggling a sub-task never changes its parent.
3. **Renaming a parent** breaks the link: its sub-tasks become orphans. Use
   ` + "`" + `check_orphans` + "`" + ` to find them. Orphans are never removed automatically.
4. **completionPercentage** is always derived by the server as
   round(100 x completed / total) over every item. Values you send are ignored.
5. **Categories** expand into one parent item followed by its sub-items. Use
   ` + "`" + `list_categories` + "`" + ` to see the catalogue.

## Photos

- Upload with ` + "`" + `upload_photo` + "`" + `. Images are resized to at most 800x800 and
  re-encoded as JPEG before storage.
- When object storage is unavailable the photo is stored inside the order as a data URL,
  limited to 200 KB per photo and 600 KB per order. The tool result carries a warning.
- Order numbers look like ` + "`" + `OT-2024-007` + "`" + `.
`
