// Command capiocl loads a CAPIO-CL workflow document, reports the
// engine it produces, and (optionally) re-serializes it back to
// stdout — a thin, scriptable front end over pkg/codec and
// pkg/engine, following the teacher's flag-plus-environment-variable
// CLI convention.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/High-Performance-IO/capiocl-go/pkg/codec"
)

// documentEnvVar lets the document path be supplied without a flag,
// matching the teacher's SSW_CONFIG_FILE convention.
const documentEnvVar = "CAPIOCL_DOCUMENT"

func main() {
	var (
		documentPath  string
		resolvePrefix string
		emit          bool
		verbose       bool
	)
	flag.StringVar(&documentPath, "document", os.Getenv(documentEnvVar), "path to a CAPIO-CL workflow document (JSON)")
	flag.StringVar(&resolvePrefix, "resolve-prefix", "", "prefix applied to relative paths in the document")
	flag.BoolVar(&emit, "emit", false, "re-serialize the parsed engine to stdout")
	flag.BoolVar(&verbose, "verbose", false, "enable debug logging")
	flag.Parse()

	logger := logrus.StandardLogger()
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if documentPath == "" {
		logger.Fatal("no document path given: pass -document or set " + documentEnvVar)
	}

	if err := run(documentPath, resolvePrefix, emit, logger); err != nil {
		logger.WithError(err).Fatal("capiocl failed")
	}
}

func run(documentPath, resolvePrefix string, emit bool, logger *logrus.Logger) error {
	raw, err := os.ReadFile(documentPath)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	opts := []codec.ParseOption{codec.WithParseLogger(logger)}
	if resolvePrefix != "" {
		opts = append(opts, codec.WithResolvePrefix(resolvePrefix))
	}

	e, err := codec.Parse(raw, opts...)
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"workflow":  e.WorkflowName(),
		"home_node": e.HomeNode(""),
		"entries":   e.Store.Size(),
	}).Info("loaded workflow document")

	if !emit {
		return nil
	}

	out, err := codec.Serialize(e)
	if err != nil {
		return fmt.Errorf("serialize engine: %w", err)
	}
	_, err = os.Stdout.Write(append(out, '\n'))
	return err
}
