package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"connectrpc.com/connect"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ryhan5/aicademy/internal/export"
	"github.com/ryhan5/aicademy/internal/poller"
	"github.com/ryhan5/aicademy/internal/record"
	"github.com/ryhan5/aicademy/internal/server"
)

// generationFlags are shared by every command addressing a (course, type) pair.
type generationFlags struct {
	courseID    string
	contentType ContentTypeFlag
}

func (f *generationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.courseID, "course", "c", "", "course id")
	cmd.Flags().VarP(&f.contentType, "type", "t", fmt.Sprintf("content type, one of %v", record.ContentTypes))
	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("type")
}

func (f *generationFlags) pair() (string, record.ContentType) {
	return f.courseID, record.ContentType(f.contentType)
}

func newCourseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "course",
		Short: "Manage courses",
	}
	cmd.AddCommand(newCourseCreateCommand())
	cmd.AddCommand(newCourseShowCommand())
	cmd.AddCommand(newCourseListCommand())
	return cmd
}

func newCourseListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List courses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			courses, err := client.ListCourses(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(courses) == 0 {
				fmt.Fprintln(w, "No courses")
				return nil
			}
			for _, c := range courses {
				fmt.Fprintf(w, "%s  %s  %s\n", c.ID, c.CreatedAt.Format("2006-01-02"), color.New(color.Bold).Sprint(c.Topic))
			}
			return nil
		},
	}
}

func newCourseCreateCommand() *cobra.Command {
	var topic, content, contentFile string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a course from a topic and optional reference text",
		RunE: func(cmd *cobra.Command, args []string) error {
			if content != "" && contentFile != "" {
				return fmt.Errorf("--content and --content-file are mutually exclusive")
			}
			if contentFile != "" {
				b, err := os.ReadFile(contentFile)
				if err != nil {
					return fmt.Errorf("os.ReadFile(%s) > %w", contentFile, err)
				}
				content = string(b)
			}

			client, _, err := newClient()
			if err != nil {
				return err
			}
			created, err := client.CreateCourse(cmd.Context(), topic, content)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created course %s (%s)\n", created.ID, created.Topic)
			return nil
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "course topic")
	cmd.Flags().StringVar(&content, "content", "", "reference text used to ground generation")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "read the reference text from a file")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func newCourseShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <course-id>",
		Short: "Show a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			c, err := client.GetCourse(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s %s\n", color.New(color.Bold).Sprint(c.Topic), c.ID)
			fmt.Fprintf(w, "  reference: %d characters\n", len([]rune(c.Content)))
			fmt.Fprintf(w, "  created:   %s\n", c.CreatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func newGenerateCommand() *cobra.Command {
	var flags generationFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate content and wait for the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			courseID, ct := flags.pair()
			result, err := client.generation.Generate(cmd.Context(), courseID, ct)
			if err != nil {
				return describeRPCError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", statusColor(result.Status).Sprint(result.Status), result.RecordID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newEnqueueCommand() *cobra.Command {
	var flags generationFlags
	var wait bool

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Start a background generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := newClient()
			if err != nil {
				return err
			}
			courseID, ct := flags.pair()
			result, err := client.generation.Enqueue(cmd.Context(), courseID, ct)
			if err != nil {
				return describeRPCError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", statusColor(result.Status).Sprint(result.Status), result.RecordID)
			if !wait {
				return nil
			}
			return runPoll(cmd, client.generation, courseID, ct, poller.Options{
				Interval:    cfg.Poller.Interval,
				MaxAttempts: cfg.Poller.MaxAttempts,
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the content is ready")
	return cmd
}

func newStatusCommand() *cobra.Command {
	var flags generationFlags
	var omitContent bool
	output := OutputText

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the generation record of a course and content type",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			courseID, ct := flags.pair()
			status, err := client.generation.GetStatus(cmd.Context(), courseID, ct, omitContent)
			if err != nil {
				return describeRPCError(err)
			}
			return printStatus(cmd.OutOrStdout(), status, output)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&omitContent, "omit-content", false, "leave the payload out of the response")
	cmd.Flags().VarP(&output, "output", "o", "output format: text, json or yaml")
	return cmd
}

func newPollCommand() *cobra.Command {
	var flags generationFlags
	var opts poller.Options
	var viaREST bool

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll until the content is ready, fails, or polling gives up",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := newClient()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				opts.Interval = cfg.Poller.Interval
			}
			if !cmd.Flags().Changed("max-attempts") {
				opts.MaxAttempts = cfg.Poller.MaxAttempts
			}
			courseID, ct := flags.pair()
			var checker poller.StatusChecker = client.generation
			if viaREST {
				checker = client.status
			}
			return runPoll(cmd, checker, courseID, ct, opts)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&viaREST, "rest", false, "poll the REST status endpoint instead of the Connect procedure")
	cmd.Flags().DurationVar(&opts.Interval, "interval", poller.DefaultInterval, "time between status checks")
	cmd.Flags().IntVar(&opts.MaxAttempts, "max-attempts", poller.DefaultMaxAttempts, "status checks before giving up")
	return cmd
}

// runPoll reports a poll that ran out of attempts as still generating, not as a failure.
func runPoll(cmd *cobra.Command, checker poller.StatusChecker, courseID string, ct record.ContentType, opts poller.Options) error {
	w := cmd.OutOrStdout()
	opts.OnCheck = func(attempt int, rec *record.Record) {
		status := "pending"
		if rec != nil {
			status = string(rec.Status)
		}
		fmt.Fprintf(w, "check %d/%d: %s\n", attempt, opts.MaxAttempts, status)
	}

	rec, err := poller.New(checker).PollUntilReady(cmd.Context(), courseID, ct, opts)
	var failed *poller.GenerationFailedError
	switch {
	case err == nil:
		fmt.Fprintf(w, "%s %s (%d bytes)\n", color.New(color.FgGreen).Sprint(record.StatusReady), rec.ID, len(rec.Content))
		return nil
	case errors.Is(err, poller.ErrTimedOut):
		fmt.Fprintln(w, color.New(color.FgYellow).Sprint(poller.ErrTimedOut.Error()))
		return nil
	case errors.As(err, &failed):
		fmt.Fprintf(w, "%s %s\n", color.New(color.FgRed).Sprint(record.StatusError), failed.Message)
		return err
	default:
		return err
	}
}

func newExportCommand() *cobra.Command {
	var flags generationFlags
	var outDir string
	var withPDF bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write Ready content as markdown and optionally PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			courseID, ct := flags.pair()
			c, err := client.GetCourse(cmd.Context(), courseID)
			if err != nil {
				return err
			}
			status, err := client.generation.GetStatus(cmd.Context(), courseID, ct, false)
			if err != nil {
				return describeRPCError(err)
			}

			mdPath, err := export.WriteMarkdown(outDir, c.Topic, status.Record())
			if err != nil {
				return fmt.Errorf("export.WriteMarkdown() > %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", mdPath)
			if !withPDF {
				return nil
			}
			pdfPath, err := export.ConvertMarkdownToPDF(mdPath)
			if err != nil {
				return fmt.Errorf("export.ConvertMarkdownToPDF() > %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", pdfPath)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "d", ".", "output directory")
	cmd.Flags().BoolVar(&withPDF, "pdf", false, "also render a PDF")
	return cmd
}

// describeRPCError keeps the server message and adds the record id or the
// offending fields when the server attached them.
func describeRPCError(err error) error {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return err
	}
	if id := server.RecordIDOf(err); id != "" {
		return fmt.Errorf("%s (record %s): %s", connectErr.Code(), id, connectErr.Message())
	}
	if violations := server.FieldViolations(err); len(violations) > 0 {
		fields := make([]string, 0, len(violations))
		for _, v := range violations {
			fields = append(fields, v.GetField()+" "+v.GetDescription())
		}
		return fmt.Errorf("%s: %s", connectErr.Code(), strings.Join(fields, "; "))
	}
	return fmt.Errorf("%s: %s", connectErr.Code(), connectErr.Message())
}
