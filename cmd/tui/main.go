package main

import (
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"video-parser/internal/app"
	"video-parser/internal/tui"
)

func main() {
	// Logs would draw over the alt screen
	logger := zerolog.Nop()
	a, err := app.New("", &logger)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	// Initialize the TUI application
	model := tui.InitialModel(a.Batch, 30*time.Second)

	// Create a new Bubble Tea program
	p := tea.NewProgram(model, tea.WithAltScreen())

	// Run the program
	if _, err := p.Run(); err != nil {
		a.Close()
		log.Printf("tui: %v", err)
		os.Exit(1)
	}
}
