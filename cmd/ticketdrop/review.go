package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/ticketdrop/ticketdrop/internal/types"
)

type reviewAction int

const (
	actionImport reviewAction = iota
	actionEdit
	actionDelete
	actionAdd
	actionExtract
	actionQuit
)

var emptyDraft types.IssueDraft

// actionOptions lists what the user can do with n drafts on screen. Actions
// that need a draft are hidden when there are none.
func actionOptions(n int) []huh.Option[reviewAction] {
	var opts []huh.Option[reviewAction]
	if n > 0 {
		label := fmt.Sprintf("Create %d issues in Linear", n)
		if n == 1 {
			label = "Create 1 issue in Linear"
		}
		opts = append(opts,
			huh.NewOption(label, actionImport),
			huh.NewOption("Edit an issue", actionEdit),
			huh.NewOption("Delete an issue", actionDelete),
		)
	}
	return append(opts,
		huh.NewOption("Add an issue", actionAdd),
		huh.NewOption("Start over from new text", actionExtract),
		huh.NewOption("Quit", actionQuit),
	)
}

func promptAction(n int) (reviewAction, error) {
	action := actionQuit
	if n > 0 {
		action = actionImport
	}
	err := huh.NewSelect[reviewAction]().
		Title("What next?").
		Options(actionOptions(n)...).
		Value(&action).
		Run()
	return action, err
}

func promptText() (string, error) {
	var text string
	err := huh.NewText().
		Title("What needs doing?").
		Description("Paste notes or a to-do list. Each task becomes an issue.").
		CharLimit(20000).
		Value(&text).
		Validate(required("text")).
		Run()
	return text, err
}

func promptIndex(c types.IssueDraftCollection, title string) (int, error) {
	opts := make([]huh.Option[int], len(c.Issues))
	for i, d := range c.Issues {
		opts[i] = huh.NewOption(fmt.Sprintf("%d. %s", i+1, d.Title), i)
	}
	var index int
	err := huh.NewSelect[int]().Title(title).Options(opts...).Value(&index).Run()
	return index, err
}

func promptDraft(d types.IssueDraft) (types.IssueDraft, error) {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Description("Short and specific, ten words at most").
				Value(&d.Title).
				Validate(required("title")),
			huh.NewText().
				Title("Description").
				CharLimit(5000).
				Value(&d.Description).
				Validate(required("description")),
		),
	)
	err := form.Run()
	return d, err
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}
