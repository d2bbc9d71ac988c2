// Package shared holds types and components used by every page: flash
// messages, the theme palette and the page layout.
package shared

import (
	"fmt"

	twmerge "github.com/Oudwins/tailwind-merge-go"
)

// ThemeMode names a palette.
type ThemeMode string

const (
	ThemeDark  ThemeMode = "dark"
	ThemeLight ThemeMode = "light"
)

// Theme is the palette passed to every component. There is no global theme;
// each render receives the one it should use.
type Theme struct {
	Mode ThemeMode

	Page    string // body background and text
	Card    string // form container
	Input   string // text inputs
	Label   string
	Button  string
	Link    string
	Error   string // field error text
	Success string // success text
}

// DarkTheme is the default palette.
func DarkTheme() Theme {
	return Theme{
		Mode:    ThemeDark,
		Page:    "min-h-screen bg-gray-900 text-gray-100",
		Card:    "mx-auto mt-16 max-w-md rounded-lg bg-gray-800 p-8 shadow-lg",
		Input:   "block w-full rounded-md border border-gray-600 bg-gray-700 px-3 py-2 text-gray-100 focus:border-indigo-400 focus:outline-none",
		Label:   "block text-sm font-medium text-gray-300",
		Button:  "w-full rounded-md bg-indigo-500 px-4 py-2 font-semibold text-white hover:bg-indigo-400 disabled:opacity-50",
		Link:    "text-indigo-300 hover:text-indigo-200",
		Error:   "mt-1 text-sm text-red-400",
		Success: "text-green-400",
	}
}

// LightTheme is the alternative palette.
func LightTheme() Theme {
	return Theme{
		Mode:    ThemeLight,
		Page:    "min-h-screen bg-gray-50 text-gray-900",
		Card:    "mx-auto mt-16 max-w-md rounded-lg bg-white p-8 shadow",
		Input:   "block w-full rounded-md border border-gray-300 bg-white px-3 py-2 text-gray-900 focus:border-indigo-500 focus:outline-none",
		Label:   "block text-sm font-medium text-gray-700",
		Button:  "w-full rounded-md bg-indigo-600 px-4 py-2 font-semibold text-white hover:bg-indigo-500 disabled:opacity-50",
		Link:    "text-indigo-600 hover:text-indigo-500",
		Error:   "mt-1 text-sm text-red-600",
		Success: "text-green-700",
	}
}

// ThemeFor returns the palette for mode.
func ThemeFor(mode string) (Theme, error) {
	switch ThemeMode(mode) {
	case ThemeDark, "":
		return DarkTheme(), nil
	case ThemeLight:
		return LightTheme(), nil
	default:
		return Theme{}, fmt.Errorf("unknown theme %q", mode)
	}
}

// Class merges base with extra Tailwind classes, letting later classes win
// over conflicting earlier ones.
func (t Theme) Class(base string, extra ...string) string {
	return twmerge.Merge(append([]string{base}, extra...)...)
}

// InputClass styles a text input, switching the border to the error color
// when the field has an error.
func (t Theme) InputClass(hasError bool) string {
	if !hasError {
		return t.Input
	}
	if t.Mode == ThemeLight {
		return t.Class(t.Input, "border-red-500")
	}
	return t.Class(t.Input, "border-red-400")
}

// FlashClass styles a flash banner.
func (t Theme) FlashClass(f *Flash) string {
	base := "mb-4 rounded-md px-4 py-3 text-sm"
	if f == nil {
		return base
	}
	switch f.Type {
	case FlashSuccess:
		return t.Class(base, "bg-green-900/40", t.Success)
	case FlashError:
		return t.Class(base, "bg-red-900/40", t.Error, "mt-0")
	case FlashWarning:
		return t.Class(base, "bg-yellow-900/40 text-yellow-300")
	default:
		return t.Class(base, "bg-blue-900/40 text-blue-300")
	}
}
