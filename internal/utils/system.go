package utils

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
)

// SystemInfo holds information about the current system
type SystemInfo struct {
	OS            string
	Architecture  string
	ChromePresent bool
	ChromePath    string
}

func DetectSystem() SystemInfo {
	return SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}
}

// --------------------------------------
// CHROME CHECK
// --------------------------------------

// CheckChrome looks for a Chrome or Chromium binary. CHROME_PATH wins when
// it points at an existing file.
func CheckChrome() (bool, string) {
	if path := os.Getenv("CHROME_PATH"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return true, path
		}
	}

	binaries := []string{
		"google-chrome",
		"google-chrome-stable",
		"chromium",
		"chromium-browser",
	}
	for _, bin := range binaries {
		if path, err := exec.LookPath(bin); err == nil {
			return true, path
		}
	}

	for _, path := range commonChromePaths(runtime.GOOS) {
		if _, err := os.Stat(path); err == nil {
			return true, path
		}
	}
	return false, ""
}

func commonChromePaths(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	}
	return nil
}

// --------------------------------------
// VALIDATION
// --------------------------------------

// NeedsChrome reports whether any enabled printer composes pages as bitmaps.
func NeedsChrome(printers []model.Printer) bool {
	for _, p := range printers {
		if p.IsEnabled && p.Family == model.FamilyRaster {
			return true
		}
	}
	return false
}

// ValidateSystemRequirements prints the platform and fails when a raster
// printer is configured without a browser to render its pages.
func ValidateSystemRequirements(printers []model.Printer) error {
	sysInfo := DetectSystem()
	fmt.Printf("System Information:\n")
	fmt.Printf("  OS: %s\n", sysInfo.OS)
	fmt.Printf("  Architecture: %s\n\n", sysInfo.Architecture)

	if !NeedsChrome(printers) {
		return nil
	}

	sysInfo.ChromePresent, sysInfo.ChromePath = CheckChrome()
	if sysInfo.ChromePresent {
		fmt.Printf("✓ Chrome/Chromium found at: %s\n", sysInfo.ChromePath)
		fmt.Printf("  Version: %s\n\n", chromeVersion(sysInfo.ChromePath))
		return nil
	}

	fmt.Println("✗ Chrome / Chromium not found!")
	fmt.Println("  Raster printers render receipt pages with headless Chrome.")
	fmt.Println()
	fmt.Println(chromeInstallHint(sysInfo.OS))
	return fmt.Errorf("chrome/chromium is required but not installed")
}

func chromeVersion(path string) string {
	output, err := exec.Command(path, "--version").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(output))
}

func chromeInstallHint(osType string) string {
	switch osType {
	case "linux":
		return "Install with your package manager, e.g.\n  sudo apt install chromium-browser\n  sudo dnf install chromium"
	case "darwin":
		return "Install with Homebrew:\n  brew install --cask google-chrome"
	case "windows":
		return "Download Google Chrome:\n  https://www.google.com/chrome/"
	}
	return "Please install Chrome or Chromium for your OS."
}
