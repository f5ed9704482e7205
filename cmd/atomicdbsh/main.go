package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/kartikbazzad/atomicdb/cmd/atomicdbsh/shell"
	"github.com/kartikbazzad/atomicdb/internal/config"
	"github.com/kartikbazzad/atomicdb/internal/logger"
)

type shellConfig struct {
	Path     string `mapstructure:"path"`
	Backend  string `mapstructure:"backend"`
	Level    int    `mapstructure:"level"`
	Password string `mapstructure:"password"`
	History  string `mapstructure:"history"`
}

var commandNames = []string{
	"use", "insert", "find", "get", "update", "remove", "count",
	"collections", "index", "drop-index", "indexes", "clear", "commit",
	"stats", "help", "exit",
}

func main() {
	cfg := shellConfig{
		Path:    "atomic.db",
		Backend: "json",
		History: defaultHistoryPath(),
	}
	if err := config.Load("ATOMICDB_", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	path := flag.String("path", cfg.Path, "database file (or directory for badger)")
	backend := flag.String("backend", cfg.Backend, "storage backend: json, compressed, memory, msgpack, sqlite, badger")
	level := flag.Int("level", cfg.Level, "compression level 0-9 for file storage")
	password := flag.String("password", cfg.Password, "encryption password for file storage")
	history := flag.String("history", cfg.History, "history file")
	flag.Parse()

	// Lifecycle logs would interleave with the prompt; keep them down.
	logger.Init(logger.Config{Level: "WARN", Format: "text"})

	db, err := shell.OpenDatabase(*backend, *path, *level, *password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	sh := shell.New(db)
	defer sh.Close()

	fmt.Printf("atomicdb shell (backend=%s path=%s)\n", *backend, *path)
	fmt.Printf("Type 'help' for commands.\n\n")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, name := range commandNames {
			if strings.HasPrefix(name, strings.ToLower(prefix)) {
				out = append(out, name+" ")
			}
		}
		return out
	})

	if f, err := os.Open(*history); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	for {
		input, err := line.Prompt(sh.Collection() + "> ")
		if err != nil {
			if err == liner.ErrPromptAborted {
				continue
			}
			if err == io.EOF {
				fmt.Println()
				break
			}
			fmt.Fprintf(os.Stderr, "read error: %v\n", err)
			break
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		out, exit := sh.Execute(input)
		if out != "" {
			fmt.Println(out)
		}
		if exit {
			break
		}
	}

	if f, err := os.Create(*history); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".atomicdbsh_history"
	}
	return filepath.Join(home, ".atomicdbsh_history")
}
