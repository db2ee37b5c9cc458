// Package main implements ruliod, the demo CLI that wires
// engine/config/collab/rulestore together into a runnable tool, the
// way rulesys/main.go wires core/service/sys/storage in the teacher.
// There is no standalone daemon mode here (§1 scopes this module as a
// library/extension, not a service binary): ruliod is a one-shot
// command runner over flag.NewFlagSet subcommands, mirroring the
// teacher's generic/engine/storage flag-set split.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tidwall/pretty"

	"github.com/grl-engine/grlrules/engine"
	"github.com/grl-engine/grlrules/internal/collab"
	"github.com/grl-engine/grlrules/internal/config"
	"github.com/grl-engine/grlrules/internal/errors"
	"github.com/grl-engine/grlrules/internal/logging"
	"github.com/grl-engine/grlrules/internal/rulestore"
)

var genericFlags = flag.NewFlagSet("generic", flag.ExitOnError)
var configFile = genericFlags.String("config", "", "path to a YAML engine config file; env vars used if empty")
var verbosity = genericFlags.String("verbosity", "", "override config's logging verbosity")

var execFlags = flag.NewFlagSet("execute", flag.ExitOnError)
var execFacts = execFlags.String("facts", "", "path to a JSON facts file")
var execRules = execFlags.String("rules", "", "path to a GRL rules file")
var execDebug = execFlags.Bool("debug", false, "record a debug session and print its events")
var execHTTPHandler = execFlags.String("http-handler", "", "name=baseURL to register as an HTTP collaborator handler")
var execScriptHandler = execFlags.String("script-handler", "", "name=path to an otto script file to register as a collaborator handler")

var queryFlags = flag.NewFlagSet("query", flag.ExitOnError)
var queryFacts = queryFlags.String("facts", "", "path to a JSON facts file")
var queryRules = queryFlags.String("rules", "", "path to a GRL rules file")
var queryGoal = queryFlags.String("goal", "", "goal expression, e.g. Customer.IsAdult == true")
var queryCanProveOnly = queryFlags.Bool("can-prove", false, "skip proof-trace capture (can_prove instead of query)")

var storeFlags = flag.NewFlagSet("rulestore", flag.ExitOnError)
var storeBackend = storeFlags.String("backend", "bolt", "storage backend: bolt, cassandra, or dynamodb")
var storeConfig = storeFlags.String("store-config", "rules.db", "backend-specific config string (bolt: filename; cassandra: host:port,...;user;pass;keyspace; dynamodb: region[:table[:consistent]])")
var storeName = storeFlags.String("name", "", "rule name")
var storeVersion = storeFlags.String("version", "", "rule version (semver); used with -put and -get")
var storeConstraint = storeFlags.String("constraint", "", "semver constraint; used with -resolve")
var storeFile = storeFlags.String("source-file", "", "GRL source file; used with -put")
var storePut = storeFlags.Bool("put", false, "store a rule version")
var storeGet = storeFlags.Bool("get", false, "fetch a rule version")
var storeResolve = storeFlags.Bool("resolve", false, "resolve the best version matching -constraint")
var storeList = storeFlags.Bool("list", false, "list known versions of -name")
var storeStats = storeFlags.Bool("stats", false, "print repository stats for -name")

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	genericFlags.Parse(args)
	args = genericFlags.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: need a subcommand (execute|query|rulestore)")
		usage()
		os.Exit(1)
	}

	cfg := loadConfig()

	var err error
	switch args[0] {
	case "execute":
		err = runExecute(cfg, args[1:])
	case "query":
		err = runQuery(cfg, args[1:])
	case "rulestore":
		err = runRulestore(args[1:])
	case "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "bad subcommand %q\n\n", args[0])
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() config.Config {
	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.FromYAMLFile(*configFile)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if *verbosity != "" {
		cfg.Verbosity = *verbosity
	}
	return *cfg
}

func runExecute(cfg config.Config, args []string) error {
	execFlags.Parse(args)
	if *execFacts == "" || *execRules == "" {
		return fmt.Errorf("execute: -facts and -rules are required")
	}

	factsJSON, err := os.ReadFile(*execFacts)
	if err != nil {
		return fmt.Errorf("reading facts file: %w", err)
	}
	rulesSrc, err := os.ReadFile(*execRules)
	if err != nil {
		return fmt.Errorf("reading rules file: %w", err)
	}

	e := engine.New(cfg)
	registerHandlers(e)

	if *execDebug {
		result, err := e.ExecuteDebug(factsJSON, rulesSrc)
		if err != nil {
			return printEnvelope(err)
		}
		events, _ := e.DebugGetEvents(result.SessionID)
		printJSON(result.FinalFacts)
		fmt.Fprintf(os.Stderr, "\n-- debug session %s (%d events) --\n", result.SessionID, len(events))
		for _, ev := range events {
			fmt.Fprintf(os.Stderr, "[%d] %s %v\n", ev.Step, ev.Kind, ev.Payload)
		}
		return nil
	}

	out, err := e.Execute(factsJSON, rulesSrc)
	if err != nil {
		return printEnvelope(err)
	}
	printJSON(out)
	return nil
}

func runQuery(cfg config.Config, args []string) error {
	queryFlags.Parse(args)
	if *queryFacts == "" || *queryRules == "" || *queryGoal == "" {
		return fmt.Errorf("query: -facts, -rules, and -goal are required")
	}

	factsJSON, err := os.ReadFile(*queryFacts)
	if err != nil {
		return fmt.Errorf("reading facts file: %w", err)
	}
	rulesSrc, err := os.ReadFile(*queryRules)
	if err != nil {
		return fmt.Errorf("reading rules file: %w", err)
	}

	e := engine.New(cfg)

	if *queryCanProveOnly {
		ok, err := e.CanProve(factsJSON, rulesSrc, *queryGoal)
		if err != nil {
			return printEnvelope(err)
		}
		fmt.Println(ok)
		return nil
	}

	res, err := e.Query(factsJSON, rulesSrc, *queryGoal)
	if err != nil {
		return printEnvelope(err)
	}
	fmt.Printf("provable: %v (goals_explored=%d rules_evaluated=%d duration_ms=%.3f)\n",
		res.Provable, res.GoalsExplored, res.RulesEvaluated, res.DurationMs)
	return nil
}

func runRulestore(args []string) error {
	storeFlags.Parse(args)

	repo, err := openRepository(*storeBackend, *storeConfig)
	if err != nil {
		return fmt.Errorf("opening %s repository: %w", *storeBackend, err)
	}
	ctx := context.Background()
	defer repo.Close(ctx)

	if *storeName == "" {
		return fmt.Errorf("rulestore: -name is required")
	}

	switch {
	case *storePut:
		if *storeVersion == "" || *storeFile == "" {
			return fmt.Errorf("rulestore -put requires -version and -source-file")
		}
		src, err := os.ReadFile(*storeFile)
		if err != nil {
			return fmt.Errorf("reading source file: %w", err)
		}
		rec := rulestore.Record{Name: *storeName, Version: *storeVersion, Source: string(src)}
		if err := repo.Put(ctx, rec); err != nil {
			return fmt.Errorf("put: %w", err)
		}
		fmt.Printf("stored %s@%s\n", rec.Name, rec.Version)
	case *storeGet:
		if *storeVersion == "" {
			return fmt.Errorf("rulestore -get requires -version")
		}
		rec, ok, err := repo.Get(ctx, *storeName, *storeVersion)
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		if !ok {
			return fmt.Errorf("no such version %s@%s", *storeName, *storeVersion)
		}
		fmt.Println(rec.Source)
	case *storeResolve:
		if *storeConstraint == "" {
			return fmt.Errorf("rulestore -resolve requires -constraint")
		}
		versions, err := repo.ListVersions(ctx, *storeName)
		if err != nil {
			return fmt.Errorf("listing versions: %w", err)
		}
		best, ok := rulestore.BestMatch(versions, *storeConstraint)
		if !ok {
			return fmt.Errorf("no version of %s satisfies %s", *storeName, *storeConstraint)
		}
		fmt.Println(best)
	case *storeList:
		versions, err := repo.ListVersions(ctx, *storeName)
		if err != nil {
			return fmt.Errorf("listing versions: %w", err)
		}
		for _, v := range versions {
			fmt.Println(v)
		}
	case *storeStats:
		stats, err := repo.Stats(ctx, *storeName)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		fmt.Printf("%+v\n", stats)
	default:
		return fmt.Errorf("rulestore: one of -put, -get, -resolve, -list, -stats is required")
	}
	return nil
}

func openRepository(backend, storeConfig string) (rulestore.Repository, error) {
	switch backend {
	case "bolt":
		return rulestore.NewBoltRepository(storeConfig)
	case "cassandra":
		cfg, err := rulestore.ParseCassandraConfig(storeConfig)
		if err != nil {
			return nil, err
		}
		return rulestore.NewCassandraRepository(cfg)
	case "dynamodb":
		cfg, err := rulestore.ParseDynamoDBConfig(storeConfig)
		if err != nil {
			return nil, err
		}
		return rulestore.NewDynamoDBRepository(cfg)
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// registerHandlers wires this demo's optional HTTP and script
// collaborator handlers into e, per the -http-handler/-script-handler
// flags. Neither is registered by default: action handler dispatch is
// opt-in, per §9's design note.
func registerHandlers(e *engine.Engine) {
	if *execHTTPHandler != "" {
		name, baseURL, ok := splitPair(*execHTTPHandler)
		if ok {
			e.Collab.Register(name, collab.HTTPHandler(baseURL))
			logging.Log(logging.INFO|logging.APP, "op", "ruliod.registerHandlers", "handler", name, "kind", "http")
		}
	}
	if *execScriptHandler != "" {
		name, path, ok := splitPair(*execScriptHandler)
		if ok {
			src, err := os.ReadFile(path)
			if err == nil {
				e.Collab.Register(name, collab.ScriptHandler(string(src)))
				logging.Log(logging.INFO|logging.APP, "op", "ruliod.registerHandlers", "handler", name, "kind", "script")
			}
		}
	}
}

func splitPair(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func printJSON(raw []byte) {
	fmt.Println(string(pretty.Pretty(raw)))
}

func printEnvelope(err error) error {
	bs, mErr := errors.MarshalEnvelope(err)
	if mErr != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, string(pretty.Pretty(bs)))
	os.Exit(1)
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "\ngeneric flags:\n\n")
	genericFlags.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nexecute subcommand:\n\n")
	execFlags.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nquery subcommand:\n\n")
	queryFlags.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nrulestore subcommand:\n\n")
	storeFlags.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\n")
}
