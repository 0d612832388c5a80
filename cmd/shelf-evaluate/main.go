package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/shelf.report/internal/evaluation"
	"github.com/banshee-data/shelf.report/internal/eventlog"
	"github.com/banshee-data/shelf.report/internal/store"
	"github.com/banshee-data/shelf.report/internal/version"
)

var (
	logPath     = flag.String("log", eventlog.DefaultPath, "CSV event log to evaluate")
	sqlitePath  = flag.String("sqlite", "", "Evaluate a session from this SQLite event store instead of a CSV log")
	sessionID   = flag.String("session", "", "Session id to evaluate (with -sqlite); empty lists sessions")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("shelf-evaluate", version.String())
		return
	}

	var err error
	if *sqlitePath != "" {
		err = evaluateStore(os.Stdout, *sqlitePath, *sessionID)
	} else {
		err = evaluateCSV(os.Stdout, *logPath)
	}
	if err != nil {
		log.Fatalf("shelf-evaluate: %v", err)
	}
}

func evaluateCSV(w io.Writer, path string) error {
	report, err := evaluation.FromCSV(path, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Evaluating %s\n\n", path)
	return report.Write(w)
}

func evaluateStore(w io.Writer, path, session string) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	if session == "" {
		sessions, err := st.Sessions()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d sessions in %s\n", len(sessions), path)
		for _, s := range sessions {
			fmt.Fprintf(w, "%s  started %s  events %d\n", s.ID, s.StartedAt.Format("2006-01-02T15:04:05Z07:00"), s.Events)
		}
		return nil
	}

	records, err := st.Records(session)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Evaluating session %s\n\n", session)
	return evaluation.Evaluate(records).Write(w)
}
