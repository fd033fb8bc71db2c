package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/pdf-toolbox/backend/internal/batch"
	"github.com/pdf-toolbox/backend/internal/client"
	"github.com/pdf-toolbox/backend/internal/models"
	"github.com/pdf-toolbox/backend/internal/pdfcheck"
	"github.com/pdf-toolbox/backend/internal/relay"
	"github.com/urfave/cli/v2"
)

// Version info (set during build)
var Version = "dev"

var (
	bold  = color.New(color.Bold)
	faint = color.New(color.Faint)
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:    "pdftool",
		Usage:   "Process PDFs and images through a PDF Toolbox server",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   "http://localhost:3000",
				Usage:   "PDF Toolbox server URL",
				EnvVars: []string{"PDFTOOL_SERVER"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "tools",
				Usage:  "List the available tools",
				Action: listTools,
			},
			{
				Name:      "process",
				Usage:     "Run a tool over one or more files",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "tool",
						Aliases:  []string{"t"},
						Usage:    "Tool identifier (see 'pdftool tools')",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "rotation",
						Aliases: []string{"r"},
						Value:   relay.DefaultRotation,
						Usage:   "Rotation angle for the rotate tool (0, 90, 180 or 270)",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (defaults to the name chosen by the server)",
					},
				},
				Action: processFiles,
			},
			{
				Name:   "balance",
				Usage:  "Show the remaining iLovePDF allowance",
				Action: showBalance,
			},
			{
				Name:      "inspect",
				Usage:     "Validate PDFs locally and report page counts",
				ArgsUsage: "FILE...",
				Action:    inspectFiles,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newClient(c *cli.Context) *client.Client {
	return client.New(c.String("server"), nil)
}

func listTools(c *cli.Context) error {
	tools, err := newClient(c).Tools(c.Context)
	if err != nil {
		return err
	}

	for _, cat := range []models.Category{models.CategoryDocument, models.CategoryImage} {
		heading := "PDF tools"
		if cat == models.CategoryImage {
			heading = "Image tools"
		}
		bold.Println(heading)
		for _, t := range tools {
			if t.Category != cat {
				continue
			}
			fmt.Printf("  %-14s %s ", t.ID, t.Name)
			faint.Printf("(%d-%d files: %v)\n", t.MinFiles, t.MaxFiles, t.AcceptedExtensions())
		}
		fmt.Println()
	}
	return nil
}

func processFiles(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return cli.Exit("no files given", 2)
	}
	rotation := c.Int("rotation")
	if !relay.ValidRotation(rotation) {
		return cli.Exit(fmt.Sprintf("invalid rotation %d: must be 0, 90, 180 or 270", rotation), 2)
	}

	cl := newClient(c)
	tools, err := cl.Tools(c.Context)
	if err != nil {
		return err
	}
	tool, ok := findTool(tools, c.String("tool"))
	if !ok {
		return cli.Exit(fmt.Sprintf("Unsupported tool: %s", c.String("tool")), 2)
	}

	b := batch.New()
	b.SelectTool(tool)

	candidates := make([]batch.Candidate, 0, len(paths))
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return err
		}
		candidates = append(candidates, batch.Candidate{
			Name:        filepath.Base(p),
			Size:        fi.Size(),
			ContentType: batch.ContentTypeOf(p),
			Path:        p,
		})
	}
	if err := b.Add(candidates); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if err := b.CheckSubmit(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	files := b.Files()
	submit := make([]string, len(files))
	for i, f := range files {
		submit[i] = f.Path
	}

	faint.Printf("Processing %d file(s), %s, with %s...\n", len(files), batch.FormatFileSize(b.TotalSize()), tool.Name)
	dl, err := cl.Process(c.Context, client.ProcessRequest{
		Tool:     tool.ID,
		Files:    submit,
		Rotation: rotation,
	})
	if err != nil {
		return err
	}

	out := c.String("output")
	if out == "" {
		out = dl.Filename
	}
	if out == "" {
		out = tool.OutputFilename()
	}
	if err := os.WriteFile(out, dl.Data, 0644); err != nil {
		return fmt.Errorf("saving result: %w", err)
	}
	b.Reset()

	color.Green("Saved %s (%s)", out, batch.FormatFileSize(int64(len(dl.Data))))
	return nil
}

func findTool(tools []models.Tool, id string) (models.Tool, bool) {
	for _, t := range tools {
		if t.ID == id {
			return t, true
		}
	}
	return models.Tool{}, false
}

func showBalance(c *cli.Context) error {
	b, err := newClient(c).Balance(c.Context)
	if err != nil {
		return err
	}

	bold.Printf("%s (%s)\n", b.Plan, b.Price)
	fmt.Printf("  Remaining files: %d\n", b.RemainingFiles)
	fmt.Printf("  Used credits:    %d / %d\n", b.UsedCredits, b.TotalCredits)
	return nil
}

func inspectFiles(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return cli.Exit("no files given", 2)
	}

	checker := pdfcheck.New()
	failed := 0
	for _, p := range paths {
		info, err := checker.Inspect(p)
		if err != nil {
			failed++
			color.Red("✗ %s: %v", p, err)
			continue
		}
		color.Green("✓ %s", p)
		faint.Printf("  %d page(s), %s\n", info.Pages, batch.FormatFileSize(info.Size))
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d file(s) failed validation", failed, len(paths)), 1)
	}
	return nil
}
