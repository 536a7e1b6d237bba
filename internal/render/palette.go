package render

var (
	defaultPalette = []rune(" .:-=+*#%@")
	blocksPalette  = []rune(" ░▒▓█")
	dotsPalette    = []rune(" .·•●")
	linesPalette   = []rune(" ╷│┃║")
)

// Palette returns the glyphs used for bar intensity, dimmest first. The
// first glyph is the empty cell.
func Palette(name string) []rune {
	switch name {
	case "blocks":
		return blocksPalette
	case "dots":
		return dotsPalette
	case "lines":
		return linesPalette
	default:
		return defaultPalette
	}
}

// PaletteNames returns all palette identifiers.
func PaletteNames() []string {
	return []string{"default", "blocks", "dots", "lines"}
}

// NextPalette returns the palette after name, wrapping around.
func NextPalette(name string) string {
	names := PaletteNames()
	for i, n := range names {
		if n == name {
			return names[(i+1)%len(names)]
		}
	}
	return names[0]
}
