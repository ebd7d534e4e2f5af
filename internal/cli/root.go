package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"taskboard/pkg/memo"
	"taskboard/pkg/task"
)

// App holds the stores and settings used by CLI commands.
type App struct {
	Tasks    task.Store
	Memos    memo.Store
	Backend  string
	Location *time.Location
	Now      func() time.Time
}

func (a *App) now() time.Time {
	loc := a.Location
	if loc == nil {
		loc = time.UTC
	}
	if a.Now == nil {
		return time.Now().In(loc)
	}
	return a.Now().In(loc)
}

// NewRootCmd creates the top-level "taskctl" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Manage automation-candidate tasks and their dependencies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newTaskCmd(app),
		newDepCmd(app),
		newMemoCmd(app),
		newDiagramCmd(app),
		newSummaryCmd(app),
		newExportCmd(app),
		newInitCmd(app),
	)

	return root
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
