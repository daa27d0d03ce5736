// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

// Program hoard copies files and directories between scattered,
// platform-dependent locations and a single canonical store, resolving
// which path applies to the current host from a declarative config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"text/tabwriter"

	"bitbucket.org/creachadair/shell"

	"github.com/shadow53/hoard/check"
	"github.com/shadow53/hoard/config"
	"github.com/shadow53/hoard/envmatch"
	"github.com/shadow53/hoard/herr"
	"github.com/shadow53/hoard/oplog"
	"github.com/shadow53/hoard/orchestrate"
	"github.com/shadow53/hoard/platform"
)

const version = "0.1.0"

const starterConfig = `# Hoard configuration. See the hoard documentation for the full schema.

[env_defaults]
# HOME = "/home/you"

[envs.always]
path_exists = [["/"]]

[hoards.example.conditions]
always = "${HOME}/.example"
`

var (
	configFile = flag.String("config-file", "", "Path to the configuration file (default: first of config.toml/.yaml/.yml/.json in the config directory)")
	hoardsRoot = flag.String("hoards-root", "", "Override the data directory holding hoards and operation logs")
	doForce    = flag.Bool("force", false, "Proceed past check failures instead of aborting")
	doHelp     = flag.Bool("help", false, "Show usage and exit")
	doVersion  = flag.Bool("version", false, "Show the version and exit")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: %[1]s [global flags] <command> [args...]

Commands:
  backup [names...]   copy files into the hoard (all hoards if none named)
  restore [names...]  copy files out of the hoard (all hoards if none named)
  validate            parse and validate the configuration file
  status              report the check verdict for every hoard
  diff [-v] <name>    show what backing up or restoring <name> would change
  list                list declared hoards and their piles
  edit                open the configuration file in $EDITOR
  init                write a starter configuration file
  cleanup             prune old operation-log entries
  upgrade             rewrite old operation-log entries to the current schema

Global flags (must precede the command):
`, filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	if *doHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *doVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(herr.ConfigParse.ExitCode())
	}

	if err := dispatch(args[0], args[1:]); err != nil {
		log.Printf("hoard: %v", err)
		os.Exit(herr.KindOf(err).ExitCode())
	}
}

func dispatch(cmd string, args []string) error {
	dirs, err := platform.DefaultDirs()
	if err != nil {
		return err
	}
	if *hoardsRoot != "" {
		dirs.DataDir = *hoardsRoot
	}

	if cmd == "init" {
		return cmdInit(dirs)
	}

	cfgPath, err := resolveConfigPath(dirs)
	if err != nil {
		return err
	}

	if cmd == "edit" {
		return cmdEdit(cfgPath)
	}

	cfg, err := config.ParseFile(cfgPath)
	if err != nil {
		return err
	}

	if cmd == "validate" {
		fmt.Println("configuration is valid")
		return nil
	}
	if cmd == "list" {
		return cmdList(cfg)
	}

	hostID, err := platform.HostID(dirs.ConfigDir)
	if err != nil {
		return err
	}

	o := &orchestrate.Orchestrator{
		Config: cfg,
		Dirs:   dirs,
		HostID: hostID,
		Host:   envmatch.DefaultHost(),
		Force:  *doForce,
	}

	switch cmd {
	case "backup":
		return withLock(dirs, func() error { return cmdRun(o, args, oplog.Backup) })
	case "restore":
		return withLock(dirs, func() error { return cmdRun(o, args, oplog.Restore) })
	case "status":
		return cmdStatus(o, args)
	case "diff":
		return cmdDiff(o, args)
	case "cleanup":
		return withLock(dirs, func() error { return cmdCleanup(dirs, cfg, hostID) })
	case "upgrade":
		return withLock(dirs, func() error { return cmdUpgrade(dirs, cfg) })
	default:
		return herr.New(herr.ConfigParse, "unknown command %q", cmd)
	}
}

// withLock serializes concurrent invocations of a mutating command on this
// host via a process-level advisory lock file.
func withLock(dirs platform.Dirs, fn func() error) error {
	if err := os.MkdirAll(dirs.DataDir, 0700); err != nil {
		return herr.Wrap(herr.IoFailure, err, "create data directory").WithPath(dirs.DataDir)
	}
	lockPath := filepath.Join(dirs.DataDir, "lock")
	lock, err := platform.AcquireLock(lockPath)
	if err != nil {
		return err
	}
	defer lock.Release()
	return fn()
}

func resolveConfigPath(dirs platform.Dirs) (string, error) {
	if *configFile != "" {
		return *configFile, nil
	}
	for _, name := range []string{"config.toml", "config.yaml", "config.yml", "config.json"} {
		p := filepath.Join(dirs.ConfigDir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", herr.New(herr.IoFailure, "no configuration file found in %s (run `hoard init`)", dirs.ConfigDir).WithPath(dirs.ConfigDir)
}

func cmdInit(dirs platform.Dirs) error {
	path := *configFile
	if path == "" {
		path = filepath.Join(dirs.ConfigDir, "config.toml")
	}
	if _, err := os.Stat(path); err == nil {
		return herr.New(herr.IoFailure, "configuration file already exists").WithPath(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return herr.Wrap(herr.IoFailure, err, "create config directory").WithPath(filepath.Dir(path))
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0600); err != nil {
		return herr.Wrap(herr.IoFailure, err, "write starter configuration").WithPath(path)
	}
	fmt.Println("wrote", path)
	return nil
}

// cmdEdit launches $EDITOR on the config file, falling back to the OS
// default handler, and logs the invocation before running it.
func cmdEdit(cfgPath string) error {
	editor := os.Getenv("EDITOR")
	var cmdline []string
	if editor != "" {
		parts, ok := shell.Split(editor)
		if !ok || len(parts) == 0 {
			return herr.New(herr.EditorExit, "cannot parse $EDITOR %q", editor)
		}
		cmdline = append(parts, cfgPath)
	} else {
		cmdline = defaultOpenCommand(cfgPath)
	}

	logCommand(cmdline)
	cmd := exec.Command(cmdline[0], cmdline[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return herr.Wrap(herr.EditorExit, err, "editor exited with an error").WithPath(cfgPath)
	}
	return nil
}

func defaultOpenCommand(path string) []string {
	switch {
	case fileExists("/usr/bin/open"), fileExists("/usr/local/bin/open"):
		return []string{"open", path}
	default:
		return []string{"xdg-open", path}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func logCommand(args []string) {
	fmt.Fprintf(os.Stderr, "+ %s\n", shell.Join(args))
}

func cmdList(cfg *config.Config) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "HOARD\tPILE\tCANDIDATES")
	for _, name := range cfg.HoardNames() {
		h := cfg.FindHoard(name)
		for _, p := range h.Piles {
			pileName := p.Name
			if pileName == "" {
				pileName = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\n", name, pileName, len(p.Candidates))
		}
	}
	return nil
}

func cmdRun(o *orchestrate.Orchestrator, names []string, direction oplog.Direction) error {
	runs, err := o.Run(context.Background(), names, direction)
	if err != nil {
		return err
	}
	return reportRuns(runs)
}

func reportRuns(runs []*orchestrate.HoardRun) error {
	var firstErr error
	for _, r := range runs {
		if r.State == orchestrate.Aborted {
			log.Printf("hoard: %s: aborted: %v", r.HoardName, r.Err)
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		log.Printf("hoard: %s: %s", r.HoardName, r.State)
	}
	return firstErr
}

func cmdStatus(o *orchestrate.Orchestrator, args []string) error {
	runs, err := o.CheckOnly(context.Background(), args, oplog.Backup)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "HOARD\tVERDICT")
	var firstErr error
	for _, r := range runs {
		if r.State == orchestrate.Aborted {
			fmt.Fprintf(tw, "%s\t<error: %v>\n", r.HoardName, r.Err)
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		verdict := check.Clean
		if r.Check != nil {
			verdict = r.Check.Verdict
		}
		fmt.Fprintf(tw, "%s\t%s\n", r.HoardName, verdict)
	}
	return firstErr
}

func cmdDiff(o *orchestrate.Orchestrator, args []string) error {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "show every per-path finding, not just the verdict")
	if err := fs.Parse(args); err != nil {
		return herr.Wrap(herr.ConfigParse, err, "parse diff flags")
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return herr.New(herr.ConfigParse, "diff takes exactly one hoard name")
	}
	name := rest[0]

	runs, err := o.CheckOnly(context.Background(), []string{name}, oplog.Backup)
	if err != nil {
		return err
	}
	r := runs[0]
	if r.State == orchestrate.Aborted {
		return r.Err
	}
	if r.Check == nil || len(r.Check.Findings) == 0 {
		fmt.Println("no changes")
		return nil
	}
	fmt.Printf("verdict: %s\n", r.Check.Verdict)
	if !*verbose {
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "CHECK\tPILE\tPATH\tDETAIL")
	for _, f := range r.Check.Findings {
		pile, path := f.Pile, f.RelPath
		if pile == "" {
			pile = "-"
		}
		if path == "" {
			path = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Check, pile, path, f.Detail)
	}
	return nil
}

func cmdCleanup(dirs platform.Dirs, cfg *config.Config, hostID string) error {
	for _, name := range cfg.HoardNames() {
		if err := oplog.Cleanup(dirs.HistoryDir(), name, hostID); err != nil {
			return err
		}
		fmt.Println("cleaned up", name)
	}
	return nil
}

// cmdUpgrade rewrites every v1 operation-log entry to the current schema.
func cmdUpgrade(dirs platform.Dirs, cfg *config.Config) error {
	upgraded := 0
	for _, name := range cfg.HoardNames() {
		listing, err := oplog.List(dirs.HistoryDir(), name)
		if err != nil {
			return err
		}
		for _, item := range listing {
			onDisk, err := oplog.OnDiskVersion(item.Path)
			if err != nil {
				return err
			}
			if onDisk >= 2 {
				continue
			}
			if err := oplog.Upgrade(item.Path); err != nil {
				return err
			}
			upgraded++
		}
	}
	fmt.Printf("upgraded %d operation-log entries\n", upgraded)
	return nil
}
