// Package main provides the entry point for the SEM Scale application.
package main

import (
	"log"
	"os"

	"sem-scale/internal/app"
	"sem-scale/internal/ocr"
	"sem-scale/internal/version"
	"sem-scale/ui/mainwindow"
	"sem-scale/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
)

const appTitle = "SEM Scale"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s v%s", appTitle, version.Version)

	a := fyneapp.NewWithID("io.semscale")
	a.Settings().SetTheme(&app.SEMTheme{})

	appPrefs := prefs.Load()
	appState := app.NewState(appPrefs.DetectorOptions())
	if pen := appPrefs.StringWithFallback(prefs.KeyPenColor, ""); pen != "" {
		if err := appState.SetPenColor(pen); err != nil {
			log.Printf("Ignoring saved pen color: %v", err)
		}
	}

	var reader app.LabelReader
	if appPrefs.Bool(prefs.KeyOCR, true) {
		engine, err := ocr.NewEngine()
		if err != nil {
			log.Printf("OCR disabled: %v", err)
		} else {
			defer engine.Close()
			reader = engine
		}
	}

	win := mainwindow.New(a, appState, appPrefs, reader)

	// Handle command line arguments
	if len(os.Args) > 1 {
		win.OpenImage(os.Args[1])
	}

	win.ShowAndRun()

	if err := appPrefs.Save(); err != nil {
		log.Printf("Failed to save preferences: %v", err)
	}
}
