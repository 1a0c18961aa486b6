package cards

import "strings"

// Ungrouped is the group reported for cards that carry no group.
const Ungrouped = "未分类"

// Card is one entry of the card list. Missing fields load as empty strings.
type Card struct {
	Name        string `json:"card_name" yaml:"card_name" parquet:"card_name,optional"`
	Prompt      string `json:"ai_prompt" yaml:"ai_prompt" parquet:"ai_prompt,optional"`
	Description string `json:"description" yaml:"description" parquet:"description,optional"`
	Group       string `json:"card_group" yaml:"card_group" parquet:"card_group,optional"`
	ColorTheme  string `json:"color_theme" yaml:"color_theme" parquet:"color_theme,optional"`
	Price       string `json:"price,omitempty" yaml:"price,omitempty" parquet:"price,optional"`
}

// GroupOrDefault returns the card group, or Ungrouped when it is blank.
func (c Card) GroupOrDefault() string {
	if g := strings.TrimSpace(c.Group); g != "" {
		return g
	}
	return Ungrouped
}

// FileName returns the output file name for the card, with characters that are
// invalid in common filesystems replaced.
func (c Card) FileName() string {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = "unnamed"
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
	return name + ".png"
}
