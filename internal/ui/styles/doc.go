// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling of the aideck dashboard.

All colors are Lip Gloss AdaptiveColor values so the same palette works on
light and dark terminals.

# Color System (colors.go)

  - Purple - algorithm names, assistant replies
  - Cyan - focused rows, values, user highlights
  - Emerald - confirmed writes, adopted values
  - Amber - pending edits and proposals
  - Rose - failures

Status indicators are ASCII ([OK], [X], [!], [i]) so state never depends
on color alone.

# Theme System (theme.go)

	theme := styles.NewThemeFor(cfg.UI.Theme)
	row := theme.SettingSelected.Render(line)
*/
package styles
