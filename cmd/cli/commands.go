package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bekovrafik/DreamColor/internal/api"
)

// session runs one subcommand against a connected daemon.
type session struct {
	ctx      context.Context
	cli      *api.Client
	token    string
	httpAddr string
	useTLS   bool
	http     *http.Client
	out      io.Writer
}

func (s *session) stdout() io.Writer {
	if s.out != nil {
		return s.out
	}
	return os.Stdout
}

func (s *session) run(cmd string, args []string) error {
	ctx := s.ctx
	switch cmd {
	case "status":
		st, err := s.cli.Status(ctx)
		if err != nil {
			return err
		}
		printJSON(st)

	case "buy":
		fs := flag.NewFlagSet("buy", flag.ExitOnError)
		pack := fs.String("pack", "single", "credit pack: single (6) or party (30)")
		_ = fs.Parse(args)
		st, err := s.cli.Purchase(ctx, &api.PurchaseRequest{Pack: *pack})
		if err != nil {
			return err
		}
		printJSON(st)

	case "adventure":
		adv, err := s.cli.GetAdventure(ctx)
		if err != nil {
			return err
		}
		n := len(adv.Pages)
		adv.Pages = nil
		printJSON(adv)
		fmt.Fprintf(s.stdout(), "pages: %d\n", n)

	case "name":
		name, err := joinArgs(args, "a name")
		if err != nil {
			return err
		}
		adv, err := s.cli.SetChildName(ctx, &api.SetChildNameRequest{Name: name})
		if err != nil {
			return err
		}
		fmt.Fprintf(s.stdout(), "child name: %s\n", adv.ChildName)

	case "theme":
		theme, err := joinArgs(args, "a theme")
		if err != nil {
			return err
		}
		adv, err := s.cli.SetTheme(ctx, &api.SetThemeRequest{Theme: theme})
		if err != nil {
			return err
		}
		fmt.Fprintf(s.stdout(), "title: %s\n", adv.Title)

	case "reference":
		fs := flag.NewFlagSet("reference", flag.ExitOnError)
		file := fs.String("file", "", "reference photo ('-'=stdin)")
		clear := fs.Bool("clear", false, "remove the reference photo")
		_ = fs.Parse(args)
		req := &api.SetReferenceRequest{}
		switch {
		case *clear:
		case *file != "":
			img, err := readImage(*file)
			if err != nil {
				return err
			}
			req.Image = &img
		default:
			return errors.New("need -file or -clear")
		}
		adv, err := s.cli.SetReference(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.stdout(), "reference: %v\n", adv.HasReference)

	case "chat":
		msg, err := joinArgs(args, "a message")
		if err != nil {
			return err
		}
		r, err := s.cli.Chat(ctx, &api.ChatRequest{Message: msg})
		if err != nil {
			return err
		}
		fmt.Fprintln(s.stdout(), r.Reply.Text)
		if r.Ready {
			fmt.Fprintln(s.stdout(), "(ready: run `dc generate -watch`)")
		}

	case "speak":
		fs := flag.NewFlagSet("speak", flag.ExitOnError)
		out := fs.String("o", "speech.wav", "output WAV file")
		_ = fs.Parse(args)
		text, err := joinArgs(fs.Args(), "text")
		if err != nil {
			return err
		}
		r, err := s.cli.Speak(ctx, &api.SpeakRequest{Text: text})
		if err != nil {
			return err
		}
		if err := os.WriteFile(*out, r.Audio, 0o644); err != nil {
			return err
		}
		fmt.Fprintln(s.stdout(), *out)

	case "reset":
		if _, err := s.cli.ResetAdventure(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.stdout(), "ok")

	case "clear-chat":
		if _, err := s.cli.ClearChat(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.stdout(), "ok")

	case "generate":
		fs := flag.NewFlagSet("generate", flag.ExitOnError)
		watch := fs.Bool("watch", false, "follow progress until the run ends")
		_ = fs.Parse(args)
		j, err := s.cli.StartGeneration(ctx)
		if err != nil {
			return err
		}
		if !*watch {
			printJSON(j)
			return nil
		}
		return s.watch()

	case "job":
		j, err := s.cli.GetJob(ctx)
		if err != nil {
			return err
		}
		printJSON(j)

	case "watch":
		return s.watch()

	case "cancel":
		j, err := s.cli.CancelJob(ctx)
		if err != nil {
			return err
		}
		printJSON(j)

	case "pages":
		fs := flag.NewFlagSet("pages", flag.ExitOnError)
		dir := fs.String("dir", ".", "output directory")
		_ = fs.Parse(args)
		adv, err := s.cli.GetAdventure(ctx)
		if err != nil {
			return err
		}
		paths, err := writeImages(*dir, "page", adv.Pages)
		if err != nil {
			return err
		}
		printJSON(paths)

	case "regen":
		fs := flag.NewFlagSet("regen", flag.ExitOnError)
		page := fs.Int("page", -1, "page index (0-based)")
		desc := fs.String("desc", "", "scene description")
		_ = fs.Parse(args)
		r, err := s.cli.RegeneratePage(ctx, &api.RegenerateRequest{Index: *page, Description: *desc})
		if err != nil {
			return err
		}
		fmt.Fprintf(s.stdout(), "page %d redrawn (%dB)\n", r.Index, len(r.Image.Data))

	case "edit":
		fs := flag.NewFlagSet("edit", flag.ExitOnError)
		page := fs.Int("page", -1, "page index (0-based)")
		rotate := fs.Float64("rotate", 0, "clockwise rotation in degrees")
		bright := fs.Float64("brightness", 100, "brightness percent")
		contrast := fs.Float64("contrast", 100, "contrast percent")
		out := fs.String("o", "", "also write the edited page to this file")
		_ = fs.Parse(args)
		r, err := s.cli.ApplyEdit(ctx, &api.EditRequest{Index: *page, Rotation: *rotate, Brightness: *bright, Contrast: *contrast})
		if err != nil {
			return err
		}
		if *out != "" {
			if err := os.WriteFile(*out, r.Image.Data, 0o644); err != nil {
				return err
			}
		}
		fmt.Fprintf(s.stdout(), "page %d edited\n", r.Index)

	case "save":
		b, err := s.cli.SaveBook(ctx)
		if err != nil {
			return err
		}
		printJSON(b)

	case "books":
		l, err := s.cli.ListBooks(ctx)
		if err != nil {
			return err
		}
		printJSON(l.Books)

	case "book":
		fs := flag.NewFlagSet("book", flag.ExitOnError)
		id := fs.String("id", "", "book id (uuid)")
		dir := fs.String("dir", "", "write cover and pages here")
		_ = fs.Parse(args)
		b, err := s.cli.GetBook(ctx, &api.BookRequest{ID: *id})
		if err != nil {
			return err
		}
		if *dir != "" {
			if b.Cover != nil {
				if _, err := writeImages(*dir, "cover", []api.Image{*b.Cover}); err != nil {
					return err
				}
			}
			if _, err := writeImages(*dir, "page", b.Pages); err != nil {
				return err
			}
		}
		b.Cover, b.Pages = nil, nil
		printJSON(b)

	case "load":
		fs := flag.NewFlagSet("load", flag.ExitOnError)
		id := fs.String("id", "", "book id (uuid)")
		_ = fs.Parse(args)
		adv, err := s.cli.LoadBook(ctx, &api.BookRequest{ID: *id})
		if err != nil {
			return err
		}
		fmt.Fprintf(s.stdout(), "loaded: %s\n", adv.Title)

	case "rm":
		fs := flag.NewFlagSet("rm", flag.ExitOnError)
		id := fs.String("id", "", "book id (uuid)")
		_ = fs.Parse(args)
		if err := s.cli.DeleteBook(ctx, &api.BookRequest{ID: *id}); err != nil {
			return err
		}
		fmt.Fprintln(s.stdout(), "ok")

	case "export":
		fs := flag.NewFlagSet("export", flag.ExitOnError)
		size := fs.String("size", "", "a4 or letter")
		orient := fs.String("orientation", "", "portrait or landscape")
		margin := fs.String("margin", "", "none, small or normal")
		noTitle := fs.Bool("no-title", false, "skip the title page")
		noNumbers := fs.Bool("no-numbers", false, "hide page numbers")
		out := fs.String("o", "", "output PDF (default: <export id>.pdf)")
		_ = fs.Parse(args)
		req := &api.ExportRequest{PageSize: *size, Orientation: *orient, Margin: *margin}
		if *noTitle {
			f := false
			req.IncludeTitlePage = &f
		}
		if *noNumbers {
			f := false
			req.ShowPageNumbers = &f
		}
		e, err := s.cli.Export(ctx, req)
		if err != nil {
			return err
		}
		dst := *out
		if dst == "" {
			dst = e.ID + ".pdf"
		}
		if err := s.download(e.Path, dst); err != nil {
			return fmt.Errorf("download %s: %w", e.Path, err)
		}
		fmt.Fprintf(s.stdout(), "%s (%d pages, %dB)\n", filepath.Clean(dst), e.Pages, e.Size)

	case "apikey":
		key, err := joinArgs(args, "a key")
		if err != nil {
			return err
		}
		cs, err := s.cli.SetAPIKey(ctx, &api.SetAPIKeyRequest{Key: key})
		if err != nil {
			return err
		}
		printJSON(cs)

	case "credential":
		cs, err := s.cli.GetCredentialStatus(ctx)
		if err != nil {
			return err
		}
		printJSON(cs)

	default:
		usage()
	}
	return nil
}

// watch prints one line per snapshot until the run ends.
func (s *session) watch() error {
	stream, err := s.cli.WatchJob(s.ctx)
	if err != nil {
		return err
	}
	for {
		j, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(s.stdout(), progressLine(j))
	}
}
