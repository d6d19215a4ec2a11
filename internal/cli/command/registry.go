package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "submit",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/api/v1/submissions",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "problem_id", Prompt: "problem_id", Type: FieldInt64, Required: true},
				{Name: "language", Prompt: "language", Type: FieldString, Required: true},
				{Name: "source_code", Prompt: "source_code", Type: FieldString, Required: true},
				{Name: "edition", Prompt: "edition", Type: FieldInt64, Required: false},
				{Name: "competition_id", Prompt: "competition_id", Type: FieldString, Required: false},
				{Name: "mode", Prompt: "mode (sync|realtime)", Type: FieldString, Required: false},
				{Name: "idempotency_key", Prompt: "idempotency_key", Type: FieldString, Required: false},
				{Name: "source_file", Prompt: "source_file", Type: FieldFile, Required: false},
			},
		},
		{
			Service:      "submit",
			Action:       "result",
			Method:       "GET",
			PathTemplate: "/api/v1/submissions/:id",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "submission_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "submit",
			Action:       "source",
			Method:       "GET",
			PathTemplate: "/api/v1/submissions/:id/source",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "submission_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "judge",
			Action:       "debug",
			Method:       "POST",
			PathTemplate: "/api/v1/debug",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "debug_id", Prompt: "debug_id", Type: FieldString, Required: true},
				{Name: "language", Prompt: "language", Type: FieldString, Required: true},
				{Name: "source_code", Prompt: "source_code", Type: FieldString, Required: true},
				{Name: "inputs", Prompt: "inputs (comma-separated)", Type: FieldStringList, Required: true},
				{Name: "problem_id", Prompt: "problem_id", Type: FieldInt64, Required: false},
				{Name: "source_file", Prompt: "source_file", Type: FieldFile, Required: false},
			},
		},
		{
			Service:      "judge",
			Action:       "diagnostics",
			Method:       "GET",
			PathTemplate: "/api/v1/judging",
			RequiresAuth: true,
		},
		{
			Service:      "contest",
			Action:       "scoreboard",
			Method:       "GET",
			PathTemplate: "/api/v1/contests/:id/scoreboard",
			RequiresAuth: false,
			Fields: []Field{
				{Name: "id", Prompt: "contest_id", Type: FieldString, Required: true},
			},
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		key := fmt.Sprintf("%s %s", cmd.Service, cmd.Action)
		result[key] = cmd
	}
	return result
}

// BuildRequest creates an HTTP request spec based on a command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}

	headers := map[string]string{}
	if cmd.Service == "submit" && cmd.Action == "create" {
		headers["Idempotency-Key"] = params.Get("idempotency_key")
	}

	var body []byte
	if cmd.Method != "GET" && cmd.Method != "DELETE" {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return RequestSpec{
		Method:  cmd.Method,
		Path:    path,
		Headers: headers,
		Body:    body,
	}, nil
}

func buildPath(template string, params Params) (string, error) {
	path := template
	placeholder := ":id"
	if strings.Contains(path, placeholder) {
		value := params.Get("id")
		if value == "" {
			return "", fmt.Errorf("missing path parameter: id")
		}
		path = strings.ReplaceAll(path, placeholder, value)
	}
	return path, nil
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	switch cmd.Service {
	case "submit":
		if cmd.Action == "create" {
			return buildSubmitCreatePayload(params)
		}
	case "judge":
		if cmd.Action == "debug" {
			return buildDebugPayload(params)
		}
	}
	return nil, nil
}

func buildSubmitCreatePayload(params Params) (interface{}, error) {
	problemID, err := ParseInt64(params.Get("problem_id"))
	if err != nil {
		return nil, fmt.Errorf("invalid problem_id: %w", err)
	}

	sourceCode, err := resolveSource(params)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"problem_id":  problemID,
		"language":    params.Get("language"),
		"source_code": sourceCode,
	}
	if params.Get("edition") != "" {
		edition, err := ParseInt64(params.Get("edition"))
		if err != nil {
			return nil, fmt.Errorf("invalid edition: %w", err)
		}
		payload["edition"] = edition
	}
	if params.Get("competition_id") != "" {
		payload["competition_id"] = params.Get("competition_id")
	}
	if params.Get("mode") != "" {
		payload["mode"] = params.Get("mode")
	}
	return payload, nil
}

func buildDebugPayload(params Params) (interface{}, error) {
	sourceCode, err := resolveSource(params)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"debug_id":    params.Get("debug_id"),
		"language":    params.Get("language"),
		"source_code": sourceCode,
		"inputs":      ParseStringList(params.Get("inputs")),
	}
	if params.Get("problem_id") != "" {
		problemID, err := ParseInt64(params.Get("problem_id"))
		if err != nil {
			return nil, fmt.Errorf("invalid problem_id: %w", err)
		}
		payload["problem_id"] = problemID
	}
	return payload, nil
}

func resolveSource(params Params) (string, error) {
	sourceCode := params.Get("source_code")
	if (sourceCode == "" || sourceCode == "_file_") && params.Get("source_file") != "" {
		var err error
		sourceCode, err = ReadFile(params.Get("source_file"))
		if err != nil {
			return "", err
		}
	}
	if sourceCode == "" {
		return "", fmt.Errorf("source_code is required")
	}
	return sourceCode, nil
}
