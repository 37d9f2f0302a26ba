package contracts

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"property-sync-service/schemas"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// схемы ссылаются друг на друга через $ref относительно этого корня
const schemaBaseURL = "https://property-sync.local/schemas/"

var (
	compileOnce     sync.Once
	compileErr      error
	compiledSchemas map[string]*jsonschema.Schema
)

// Известные контракты
const (
	SaveEditRequest         = "SaveEditRequest"
	PreviewPriceRequest     = "PreviewPriceRequest"
	ValidateRecordRequest   = "ValidateRecordRequest"
	PropagateProjectRequest = "PropagateProjectRequest"
	PropagateProjectCommand = "PropagateProjectCommand"
	PropagationCompleted    = "PropagationCompletedEvent"

	Version1 = "1.0.0"
)

func load() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchemas, compileErr = compileAll(schemas.SchemasFS)
	})
	return compiledSchemas, compileErr
}

// compileAll регистрирует все *.json как ресурсы (для $ref), затем компилирует
// только версионированные контракты вида <group>/<name>/vN.json
func compileAll(fsys fs.FS) (map[string]*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	var paths []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		file, err := fsys.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		if err := compiler.AddResource(schemaBaseURL+path, file); err != nil {
			return fmt.Errorf("failed to add schema resource %s: %w", path, err)
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking schema resources: %w", err)
	}

	out := make(map[string]*jsonschema.Schema)
	for _, path := range paths {
		key := generateKeyFromPath(path)
		if key == "" {
			continue
		}
		schema, err := compiler.Compile(schemaBaseURL + path)
		if err != nil {
			return nil, fmt.Errorf("could not compile schema %s: %w", path, err)
		}
		out[key] = schema
	}
	return out, nil
}

// generateKeyFromPath: "events/propagation-completed/v1.json" -> "PropagationCompletedEvent/1.0.0",
// "events/propagate-project-command/v1.json" -> "PropagateProjectCommand/1.0.0",
// "requests/save-edit/v1.json" -> "SaveEditRequest/1.0.0". Остальное ключа не получает.
func generateKeyFromPath(path string) string {
	parts := strings.Split(strings.TrimSuffix(path, ".json"), "/")
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "v") {
		return ""
	}

	var suffix string
	switch parts[0] {
	case "events":
		suffix = "Event"
		if strings.HasSuffix(parts[1], "-command") || strings.HasSuffix(parts[1], "-event") {
			suffix = ""
		}
	case "requests":
		suffix = "Request"
	default:
		return ""
	}

	caser := cases.Title(language.English)
	var name strings.Builder
	for _, p := range strings.Split(parts[1], "-") {
		name.WriteString(caser.String(p))
	}
	name.WriteString(suffix)

	version := strings.TrimPrefix(parts[2], "v") + ".0.0"
	return fmt.Sprintf("%s/%s", name.String(), version)
}

// Validate проверяет тело сообщения или запроса по схеме контракта
func Validate(contract, version string, body []byte) error {
	compiled, err := load()
	if err != nil {
		return err
	}

	schema, ok := compiled[fmt.Sprintf("%s/%s", contract, version)]
	if !ok {
		return fmt.Errorf("schema for '%s' version '%s' not found", contract, version)
	}

	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("message body is not a valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("JSON schema validation failed: %w", err)
	}
	return nil
}

// ValidateEvent - для событий RabbitMQ, версия берется из заголовка event-version
func ValidateEvent(eventType, eventVersion string, body []byte) error {
	return Validate(eventType, eventVersion, body)
}
