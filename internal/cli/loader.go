package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/querybuilder/internal/compiler"
)

// LoadError is an input loading failure with an error code.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDefinition compiles a CUE query definition. path is a .cue file or a
// directory whose .cue files are unified into one definition. Files are
// passed to the loader by name, so a package clause is optional.
func LoadDefinition(path string) (*compiler.Result, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", path, err)}
	}

	cfg := &load.Config{}
	var args []string
	if info.IsDir() {
		files, err := FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
		cfg.Dir = path
		for _, f := range files {
			args = append(args, filepath.Base(f))
		}
	} else {
		if filepath.Ext(path) != ".cue" {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("not a CUE file: %s", path)}
		}
		cfg.Dir = filepath.Dir(path)
		args = []string{filepath.Base(path)}
	}

	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	result, err := compiler.Compile(value)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return result, nil
}

// FindCUEFiles returns the .cue files directly inside dir. Subdirectories
// are not part of the same instance and are skipped.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Field + ": " + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// readInput returns the contents of path, or stdin when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading stdin: %v", err)}
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	return data, nil
}

// decodeInput reads path and decodes its JSON into out.
func decodeInput(path string, stdin io.Reader, out any) error {
	data, err := readInput(path, stdin)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &LoadError{Code: ErrCodeInvalidJSON, Message: fmt.Sprintf("decoding %s: %v", displayName(path), err)}
	}
	return nil
}

func displayName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return path
}

// failLoad writes err and converts it to an ExitError.
func failLoad(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		if !f.JSON() && loadErr.Pos.IsValid() {
			fmt.Fprintf(f.Writer, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		return f.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}

// Error code constants, shared by every command.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeReadFailed  = "E008" // File read error
	ErrCodeInvalidJSON = "E009" // Input is not the expected JSON
	ErrCodeInvalidArg  = "E010" // Bad flag or argument value

	// Query definition errors
	ErrCodeSchema      = "E101" // Definition does not match the schema
	ErrCodeNoQueries   = "E102" // Nothing to compile
	ErrCodePanel       = "E103" // Unknown panel
	ErrCodeEntry       = "E104" // Malformed query entry
	ErrCodeFilter      = "E105" // Filter expression error
	ErrCodeAggregation = "E106" // Aggregation or metric error
	ErrCodeReference   = "E107" // Unknown reference or reference cycle
	ErrCodeRawQuery    = "E108" // PromQL or ClickHouse entry error

	// Query problems
	ErrCodeProblems   = "E201" // Composite query has validation problems
	ErrCodeTestFailed = "E202" // One or more scenarios failed
	ErrCodeStore      = "E301" // Saved view storage error
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeSchema
	case field == "query":
		return ErrCodeNoQueries
	case field == "panel":
		return ErrCodePanel
	case strings.HasPrefix(field, "promql.") || strings.HasPrefix(field, "clickhouse."):
		return ErrCodeRawQuery
	case strings.HasSuffix(field, ".filter"):
		return ErrCodeFilter
	case strings.HasSuffix(field, ".aggregations") || strings.HasSuffix(field, ".metric"):
		return ErrCodeAggregation
	case strings.HasSuffix(field, ".expression"):
		return ErrCodeReference
	case strings.HasPrefix(field, "query."):
		return ErrCodeEntry
	default:
		return ErrCodeGeneric
	}
}
