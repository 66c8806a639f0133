package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Algiras/skillz/internal/logging"
	"github.com/spf13/cobra"
)

var logsFollow bool

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show today's runtime log entries",
	Run: func(cmd *cobra.Command, args []string) {
		dir, err := appDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		logPath := filepath.Join(dir, "logs", time.Now().Format("20060102")+".log")

		printLogFile(logPath)
		if !logsFollow {
			return
		}
		followLogFile(logPath)
	},
}

func printLogFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		printEntryLine(scanner.Bytes())
	}
}

func printEntryLine(line []byte) {
	var e logging.Entry
	if err := json.Unmarshal(line, &e); err != nil {
		return
	}
	fmt.Printf("[%s] [%s] %s\n", e.Timestamp, e.Level, e.Message)
}

// followLogFile polls the active log file for newly appended lines. A
// daemon-less CLI has no standing process to subscribe to, so tailing the
// file is the only way to observe entries written by other invocations.
func followLogFile(path string) {
	var offset int64
	if info, err := os.Stat(path); err == nil {
		offset = info.Size()
	}

	for range time.Tick(500 * time.Millisecond) {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		f.Seek(offset, 0)
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			printEntryLine(scanner.Bytes())
		}
		if info, err := f.Stat(); err == nil {
			offset = info.Size()
		}
		f.Close()
	}
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "poll for newly appended log entries")
}
