package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"omnichat/internal/capture"
	"omnichat/internal/client"
)

func serverFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "server",
		Usage:   "Base URL of the chat proxy",
		Aliases: []string{"s"},
		EnvVars: []string{"OMNICHAT_SERVER"},
		Value:   "http://localhost:3000",
	}
}

func chatFlags() []cli.Flag {
	return []cli.Flag{
		serverFlag(),
		&cli.StringFlag{
			Name:    "message",
			Usage:   "Text to send; with --image or --snapshot it is the prompt",
			Aliases: []string{"m"},
		},
		&cli.StringFlag{
			Name:  "image",
			Usage: "Path to an image file to upload (max 10MB)",
		},
		&cli.StringFlag{
			Name:  "snapshot",
			Usage: "Path to an image used as the camera; the frame is re-encoded as JPEG",
		},
		&cli.StringFlag{
			Name:  "audio",
			Usage: "Path to a WAV recording used as the microphone",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "How long to wait for a reply",
			Value: client.DefaultTimeout,
		},
		&cli.DurationFlag{
			Name:  "reveal-delay",
			Usage: "Delay between revealed characters",
			Value: client.DefaultRevealDelay,
		},
	}
}

func pingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check that the chat proxy is running",
		Flags: []cli.Flag{serverFlag()},
		Action: func(c *cli.Context) error {
			out, err := client.NewAPIClient(c.String("server"), &http.Client{Timeout: 5 * time.Second}).Ping(c.Context)
			if err != nil {
				return cli.Exit(client.Message(err), 1)
			}
			fmt.Fprintf(c.App.Writer, "%s (%s)\n", out.Message, out.Timestamp)
			return nil
		},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "omnichat",
		Usage:    "Chat with a multimodal model through the omnichat proxy",
		Flags:    chatFlags(),
		Commands: []*cli.Command{pingCommand()},
		Action:   runChat,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runChat(c *cli.Context) error {
	out := c.App.Writer
	ctx := c.Context

	session := capture.NewSession(
		capture.FileMicrophone{Path: c.String("audio")},
		capture.ImageCamera{Path: c.String("snapshot")},
		capture.WAVDecoder,
	)
	defer session.Close()

	orchestrator := client.NewOrchestrator(
		client.NewAPIClient(c.String("server"), &http.Client{}),
		session,
		client.WithTimeout(c.Duration("timeout")),
		client.WithRevealer(client.NewTypewriter(out, c.Duration("reveal-delay"))),
		client.WithStateHook(func(_ string, state client.TurnState) {
			switch state {
			case client.TurnSending:
				fmt.Fprintln(c.App.ErrWriter, client.LoadingMessages[0])
			case client.TurnRendering:
				fmt.Fprint(out, "bot: ")
			}
		}),
	)

	message := c.String("message")
	switch {
	case c.String("audio") != "":
		if err := session.Recorder.Start(ctx); err != nil {
			return cli.Exit(client.Message(err), 1)
		}
		return render(out, orchestrator.RecordAndSend(ctx))
	case c.String("snapshot") != "":
		if err := session.Camera.Open(ctx); err != nil {
			return cli.Exit(client.Message(err), 1)
		}
		return render(out, orchestrator.SnapshotAndSend(ctx, message))
	case c.String("image") != "":
		image, err := capture.ReadUploadFile(c.String("image"))
		if err != nil {
			return cli.Exit(client.Message(err), 1)
		}
		return render(out, orchestrator.SendImage(ctx, image, message))
	case strings.TrimSpace(message) != "":
		return render(out, orchestrator.SendText(ctx, message))
	}
	return interactive(ctx, c.App.Reader, out, orchestrator)
}

// interactive reads one text turn per line until EOF or /quit. "/image PATH
// [PROMPT]" sends an image file.
func interactive(ctx context.Context, in io.Reader, out io.Writer, o *client.Orchestrator) error {
	prompt := false
	if f, ok := in.(*os.File); ok {
		prompt = isatty.IsTerminal(f.Fd())
	}

	scanner := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(out, "you: ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case strings.HasPrefix(line, "/image "):
			path, text, _ := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "/image ")), " ")
			image, err := capture.ReadUploadFile(path)
			if err != nil {
				fmt.Fprintf(out, "bot: %s\n", client.Message(err))
				continue
			}
			_ = render(out, o.SendImage(ctx, image, text))
		default:
			_ = render(out, o.SendText(ctx, line))
		}
	}
}

func render(out io.Writer, res client.TurnResult) error {
	if res.Err != nil {
		fmt.Fprintf(out, "bot: %s\n", res.Message)
		return cli.Exit("", 1)
	}
	if res.Revealed != nil {
		<-res.Revealed
	} else {
		fmt.Fprint(out, res.Reply)
	}
	fmt.Fprintln(out)
	return nil
}
