package ui

import (
	"log"
	"os"

	"gioui.org/app"
)

// Run launches the Gio UI and blocks until the window closes.
func Run(state *AppState) error {
	if state == nil {
		state = NewState()
	}

	go func() {
		w := new(app.Window)
		a := NewApp(w, state)
		if err := a.Run(); err != nil {
			log.Printf("ui: %v", err)
		}
		os.Exit(0)
	}()

	app.Main()
	return nil
}
