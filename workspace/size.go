package workspace

import "fmt"

// FormatSize renders a byte count with decimal units and two decimals,
// e.g. 2500000 → "2.50 MB". Counts below 1000 are printed as-is.
func FormatSize(bytes int64) string {
	b := float64(bytes)
	switch {
	case b >= 1e9:
		return fmt.Sprintf("%.2f GB", b/1e9)
	case b >= 1e6:
		return fmt.Sprintf("%.2f MB", b/1e6)
	case b >= 1e3:
		return fmt.Sprintf("%.2f KB", b/1e3)
	}
	return fmt.Sprintf("%d B", bytes)
}
