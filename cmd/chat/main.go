package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"ai-paperchat-client/internal/bootstrap"
	"ai-paperchat-client/internal/config"
	"ai-paperchat-client/internal/constant"
	"ai-paperchat-client/internal/dto"
	"ai-paperchat-client/internal/tracer"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

func main() {
	// 0. Initialize Tracer
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	// 3. Start Background Services
	go func() {
		log.Println("Background: Starting Progress Consumer...")
		if err := container.ProgressConsumer.Consume(context.Background()); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()

	// 4. Warm the library view; failures are non-fatal
	ctx := context.Background()
	if err := container.LibraryService.RefreshPapers(ctx); err != nil {
		log.Printf("[WARN] Initial paper refresh failed: %v", err)
	}
	if err := container.LibraryService.RefreshStats(ctx); err != nil {
		log.Printf("[WARN] Initial stats refresh failed: %v", err)
	}

	// 5. Run REPL
	runREPL(ctx, container)
}

func runREPL(ctx context.Context, c *bootstrap.Container) {
	color.Cyan("📚 PaperChat - ask questions about your document library")
	color.White("Commands: /upload <files...>  /papers  /stats  /list  /open <id>  /new  /delete <id>  /cancel <task>  /retry <task>  /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return
		}
		if strings.HasPrefix(line, "/") {
			handleCommand(ctx, c, line)
			continue
		}
		submitQuestion(ctx, c, line)
	}
}

func submitQuestion(ctx context.Context, c *bootstrap.Container, question string) {
	result, err := c.QueryService.SubmitQuery(ctx, question, dto.QueryOptions{})
	if err != nil {
		color.Red("Failed: %v", err)
		return
	}
	if result == nil {
		return
	}

	conv := c.QueryService.ActiveConversation()
	if conv == nil {
		return
	}
	for _, msg := range conv.Messages {
		if msg.Id != result.ResponseId {
			continue
		}
		color.Green("%s", msg.Content)
		if msg.Metadata != nil && len(msg.Metadata.Sources) > 0 {
			color.Yellow("\nSources:")
			for i, src := range msg.Metadata.Sources {
				color.White("  [%d] %s (%.2f)", i+1, src.Title, src.Score)
			}
		}
	}
}

func handleCommand(ctx context.Context, c *bootstrap.Container, line string) {
	parts := strings.Fields(line)
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "/upload":
		if len(args) == 0 {
			color.Red("Usage: /upload <files...>")
			return
		}
		files := make([]dto.UploadFile, 0, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				color.Red("Cannot read %s: %v", path, err)
				return
			}
			files = append(files, dto.UploadFile{Filename: filepath.Base(path), Data: data})
		}
		result, err := c.UploadService.StartUpload(ctx, files)
		if err != nil {
			color.Red("Upload failed: %v", err)
			return
		}
		if result.SkippedDuplicates > 0 {
			color.Yellow("Skipped %d duplicate(s): %s", result.SkippedDuplicates, strings.Join(result.SkippedTitles, ", "))
		}
		if result.TaskCount > 0 {
			color.Green("Uploaded %d file(s), batch %s is processing", result.TaskCount, result.BatchId)
		}

	case "/papers":
		papers := c.LibraryService.Papers()
		if len(papers) == 0 {
			color.White("Library is empty")
			return
		}
		for _, p := range papers {
			marker := " "
			if p.Provisional {
				marker = "~"
			}
			color.White("%s %-36s %-10s %3d%%  %s", marker, p.Id, p.Status, p.ProgressPercent, p.Title)
		}

	case "/stats":
		stats := c.LibraryService.Stats()
		color.White("Papers: %d  Chunks: %d  Queries: %d", stats.PaperCount, stats.ChunkCount, stats.QueryCount)

	case "/list":
		summaries, err := c.QueryService.GetConversations(ctx)
		if err != nil {
			color.Red("Failed: %v", err)
			return
		}
		for _, s := range summaries {
			color.White("%s  %s  (%s)", s.Id, s.Title, s.CreatedAt.Format("2006-01-02 15:04"))
		}

	case "/open":
		id, ok := parseId(args)
		if !ok {
			return
		}
		history, err := c.QueryService.GetHistory(ctx, id)
		if err != nil {
			color.Red("Failed: %v", err)
			return
		}
		if err := c.QueryService.SelectConversation(id); err != nil {
			color.Red("Failed: %v", err)
			return
		}
		for _, msg := range history {
			if msg.Kind == constant.MessageKindQuery {
				color.Cyan("> %s", msg.Content)
			} else {
				color.Green("%s", msg.Content)
			}
		}

	case "/new":
		conv := c.QueryService.NewConversation()
		color.Green("Started %s", conv.Title)

	case "/delete":
		id, ok := parseId(args)
		if !ok {
			return
		}
		if err := c.QueryService.DeleteConversation(ctx, id); err != nil {
			color.Red("Failed: %v", err)
		}

	case "/cancel":
		if len(args) == 0 {
			color.Red("Usage: /cancel <task-id>")
			return
		}
		if err := c.UploadService.CancelTask(ctx, args[0]); err != nil {
			color.Red("Failed: %v", err)
		}

	case "/retry":
		if len(args) == 0 {
			color.Red("Usage: /retry <task-id>")
			return
		}
		if err := c.UploadService.RetryTask(ctx, args[0]); err != nil {
			color.Red("Failed: %v", err)
		}

	case "/batch":
		batch := c.UploadService.ActiveBatch()
		if batch == nil {
			color.White("No active batch")
			return
		}
		for _, t := range batch.Tasks {
			status := t.Status
			if t.Status == constant.TaskStatusError {
				status = fmt.Sprintf("%s (%s)", t.Status, t.ErrorMessage)
			}
			color.White("%-36s %3d%%  %-12s %s", t.TaskId, t.ProgressPercent, status, t.Filename)
		}

	default:
		color.Red("Unknown command: %s", cmd)
	}
}

func parseId(args []string) (uuid.UUID, bool) {
	if len(args) == 0 {
		color.Red("Missing id argument")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		color.Red("Invalid id: %v", err)
		return uuid.Nil, false
	}
	return id, true
}
