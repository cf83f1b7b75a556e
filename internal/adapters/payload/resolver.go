// Package payload resolves the worker payload descriptor from the job
// description document.
package payload

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/sciforge/rangeagent/internal/domain/model"
	agenterrors "github.com/sciforge/rangeagent/internal/errors"
	"github.com/sciforge/rangeagent/internal/fileutil"
)

// ResolverOptions configures payload retrieval from a job description.
type ResolverOptions struct {
	// Source is the path to the job description JSON document.
	Source string

	// CommandExpr and ArgsExpr are JMESPath expressions selecting the payload
	// command and its argument string out of the document. Job-description
	// dialects differ, so the mapping is expression-driven rather than baked
	// into struct tags.
	CommandExpr string
	ArgsExpr    string

	// WorkDir and LogFile are carried onto the resolved descriptor.
	WorkDir string
	LogFile string

	Logger *slog.Logger
}

// Resolver retrieves a payload descriptor from a job description document.
type Resolver struct {
	source  string
	workDir string
	logFile string
	logger  *slog.Logger

	commandExpr jmespath.JMESPath
	argsExpr    jmespath.JMESPath
}

// NewResolver compiles the configured expressions and constructs a Resolver.
func NewResolver(opts ResolverOptions) (*Resolver, error) {
	if opts.Source == "" {
		return nil, agenterrors.Configuration("payload source is required for retrieval")
	}
	if opts.CommandExpr == "" {
		return nil, agenterrors.Configuration("payload command expression is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cmdExpr, err := jmespath.Compile(opts.CommandExpr)
	if err != nil {
		return nil, agenterrors.Configurationf("compile command expression %q: %v", opts.CommandExpr, err)
	}

	var argsExpr jmespath.JMESPath
	if opts.ArgsExpr != "" {
		argsExpr, err = jmespath.Compile(opts.ArgsExpr)
		if err != nil {
			return nil, agenterrors.Configurationf("compile args expression %q: %v", opts.ArgsExpr, err)
		}
	}

	return &Resolver{
		source:      opts.Source,
		workDir:     opts.WorkDir,
		logFile:     opts.LogFile,
		logger:      logger.With("component", "payload_resolver"),
		commandExpr: cmdExpr,
		argsExpr:    argsExpr,
	}, nil
}

// Retrieve reads the job description and extracts the payload descriptor.
func (r *Resolver) Retrieve(ctx context.Context) (*model.PayloadDescriptor, error) {
	var doc any
	if err := fileutil.ReadJSON(r.source, &doc); err != nil {
		return nil, fmt.Errorf("read job description: %w", err)
	}

	command, err := r.evalString(r.commandExpr, doc)
	if err != nil {
		return nil, fmt.Errorf("extract payload command: %w", err)
	}
	if command == "" {
		return nil, agenterrors.Configurationf("job description %s has no payload command", r.source)
	}

	var args []string
	if r.argsExpr != nil {
		argStr, aerr := r.evalString(r.argsExpr, doc)
		if aerr != nil {
			return nil, fmt.Errorf("extract payload args: %w", aerr)
		}
		args = strings.Fields(argStr)
	}

	desc := &model.PayloadDescriptor{
		Executable: command,
		Args:       args,
		WorkDir:    r.workDir,
		LogFile:    r.logFile,
	}
	r.logger.InfoContext(ctx, "payload resolved from job description",
		"source", r.source, "executable", desc.Executable, "args", len(desc.Args))
	return desc, nil
}

func (r *Resolver) evalString(expr jmespath.JMESPath, doc any) (string, error) {
	v, err := expr.Search(doc)
	if err != nil {
		return "", fmt.Errorf("evaluate expression: %w", err)
	}
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expression selected %T, want string", v)
	}
	return strings.TrimSpace(s), nil
}
