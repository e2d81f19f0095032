package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"jabberwocky238/podrun/k8s"
	"jabberwocky238/podrun/manifest"

	"github.com/buildkite/shellwords"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var clusterFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "kubeconfig",
		Value:  k8s.DefaultKubeconfig(),
		Usage:  "Path to the kubeconfig file (empty for in-cluster config)",
		EnvVar: "KUBECONFIG",
	},
	cli.StringFlag{
		Name:   "namespace",
		Value:  manifest.DefaultNamespace,
		Usage:  "Namespace for pods whose manifest does not name one",
		EnvVar: "PODRUN_NAMESPACE",
	},
	cli.StringFlag{
		Name:   "template-dir",
		Value:  manifest.DefaultTemplateDir,
		Usage:  "Directory holding {command}.yml pod templates",
		EnvVar: "PODRUN_TEMPLATE_DIR",
	},
	cli.DurationFlag{
		Name:   "poll-interval",
		Value:  k8s.DefaultPollInterval,
		Usage:  "Delay between pod status reads while the pod is Pending",
		EnvVar: "PODRUN_POLL_INTERVAL",
	},
	cli.DurationFlag{
		Name:   "poll-timeout",
		Value:  k8s.DefaultPollTimeout,
		Usage:  "Give up waiting for a Pending pod after this long",
		EnvVar: "PODRUN_POLL_TIMEOUT",
	},
	cli.BoolFlag{
		Name:   "debug",
		Usage:  "Enable debug logging",
		EnvVar: "PODRUN_DEBUG",
	},
}

func main() {
	app := cli.NewApp()
	app.Name = "podrun"
	app.Usage = "Run a command as a single-use pod and collect its output"
	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "Run a command using the pod template named after its first word",
			ArgsUsage: "<command> [args...]",
			Flags:     clusterFlags,
			Action:    runAction,
		},
		{
			Name:      "image",
			Usage:     "Run the demonstration command in an image",
			ArgsUsage: "<image>",
			Flags:     clusterFlags,
			Action:    imageAction,
		},
		{
			Name:   "serve",
			Usage:  "Serve the run API and execute queued runs",
			Flags:  append(serveFlags, clusterFlags...),
			Action: serveAction,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.NewExitError("usage: podrun run <command> [args...]", 2)
	}

	logger, err := newLogger(c.Bool("debug"))
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := k8s.InitK8s(c.String("kubeconfig")); err != nil {
		return cli.NewExitError(fmt.Sprintf("init kubernetes client: %v", err), 1)
	}
	ctl := newController(c, newBuilder(c), logger, printProgress)

	res, err := ctl.RunToCompletion(context.Background(), commandLine(c.Args()))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	report(res)
	return nil
}

func imageAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: podrun image <image>", 2)
	}

	logger, err := newLogger(c.Bool("debug"))
	if err != nil {
		return err
	}
	defer logger.Sync()

	builder := newBuilder(c)
	spec, err := builder.BuildFromImage(c.Args().First())
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	if err := k8s.InitK8s(c.String("kubeconfig")); err != nil {
		return cli.NewExitError(fmt.Sprintf("init kubernetes client: %v", err), 1)
	}
	ctl := newController(c, builder, logger, printProgress)

	res, err := ctl.RunSpec(context.Background(), spec)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	report(res)
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newBuilder(c *cli.Context) *manifest.Builder {
	return &manifest.Builder{
		TemplateDir: c.String("template-dir"),
		Namespace:   c.String("namespace"),
	}
}

func newController(c *cli.Context, builder *manifest.Builder, logger *zap.Logger, onProgress k8s.ProgressFunc) *k8s.Controller {
	return k8s.NewController(k8s.NewClientsetAPI(k8s.K8sClient), k8s.ControllerConfig{
		Builder:      builder,
		Logger:       logger,
		PollInterval: c.Duration("poll-interval"),
		PollTimeout:  c.Duration("poll-timeout"),
		OnProgress:   onProgress,
	})
}

// commandLine rebuilds a single command string from the arguments. A lone
// argument is taken as an already-quoted command line.
func commandLine(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellwords.QuotePosix(a)
	}
	return strings.Join(quoted, " ")
}

func printProgress(h *k8s.WorkloadHandle, percent float64, line string) {
	fmt.Fprintf(os.Stderr, "[%5.1f%%] %s: %s\n", percent, h.Name, line)
}

func report(res *k8s.Result) {
	fmt.Print(res.Output)

	if res.Degraded() {
		fmt.Fprintf(os.Stderr, "podrun: pod %s finished %s with %d warning(s) after %s of output:\n",
			res.Pod, res.Phase, len(res.Warnings), humanize.Bytes(uint64(len(res.Output))))
		for _, w := range res.WarningMessages() {
			fmt.Fprintf(os.Stderr, "  - %s\n", w)
		}
	}
}
