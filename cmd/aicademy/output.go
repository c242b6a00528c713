package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/ryhan5/aicademy/internal/record"
	"github.com/ryhan5/aicademy/internal/server"
)

type statusView struct {
	record.Record `yaml:",inline"`
	ContentLength int `yaml:"content_length"`
}

func statusColor(s record.Status) *color.Color {
	switch s {
	case record.StatusReady:
		return color.New(color.FgGreen)
	case record.StatusError:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}

func printStatus(w io.Writer, status *server.StatusResponse, format OutputFlag) error {
	switch format {
	case OutputJSON:
		b, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("json.MarshalIndent() > %w", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case OutputYAML:
		b, err := yaml.Marshal(statusView{Record: *status.Record(), ContentLength: status.ContentLength})
		if err != nil {
			return fmt.Errorf("yaml.Marshal() > %w", err)
		}
		_, err = w.Write(b)
		return err
	}

	bold := color.New(color.Bold)
	if _, err := fmt.Fprintf(w, "%s %s/%s\n", bold.Sprint("Record:"), status.CourseID, status.ContentType); err != nil {
		return fmt.Errorf("failed to write to stdout: %w", err)
	}
	fmt.Fprintf(w, "  id:      %s\n", status.ID)
	fmt.Fprintf(w, "  status:  %s\n", statusColor(status.Status).Sprint(status.Status))
	fmt.Fprintf(w, "  attempt: %d\n", status.Attempt)
	fmt.Fprintf(w, "  size:    %d bytes\n", status.ContentLength)
	if status.Error != "" {
		fmt.Fprintf(w, "  error:   %s\n", color.New(color.FgRed).Sprint(status.Error))
	}
	return nil
}
