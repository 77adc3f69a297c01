// Package main provides the nnexport CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/born-ml/nnexport/internal/codegen"
	"github.com/born-ml/nnexport/internal/config"
	"github.com/born-ml/nnexport/internal/descriptor"
	"github.com/born-ml/nnexport/internal/plugin"
	"github.com/born-ml/nnexport/internal/translate"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

const version = "v0.1.0"

var (
	app        = kingpin.New("nnexport", "Export trained neural networks as static descriptor tables for firmware")
	debug      = app.Flag("debug", "use debug level of logging").Bool()
	configFile = app.Flag("config", "YAML configuration file").Short('c').ExistingFile()

	translateCmd      = app.Command("translate", "Translate a model file into target source files")
	translateFrontend = translateCmd.Flag("frontend", "input format (detected when empty)").Short('f').String()
	translateBackend  = translateCmd.Flag("backend", "output target").Short('b').String()
	translateInput    = translateCmd.Flag("input", "model file").Short('i').Required().ExistingFile()
	translateName     = translateCmd.Flag("output", "model name, also the output directory name").Short('o').String()
	translateOutDir   = translateCmd.Flag("out-dir", "directory the model directory is created in").String()

	validateCmd      = app.Command("validate", "Load and validate a model file")
	validateFrontend = validateCmd.Flag("frontend", "input format (detected when empty)").Short('f').String()
	validateArgFile  = validateCmd.Arg("file", "model file").Required().ExistingFile()

	inspectCmd      = app.Command("inspect", "Print the layer table of a model file")
	inspectFrontend = inspectCmd.Flag("frontend", "input format (detected when empty)").Short('f').String()
	inspectMarkers  = inspectCmd.Flag("markers", "print legacy template marker values").Bool()
	inspectSchema   = inspectCmd.Flag("schema", "table set for --markers (basic or extended)").Default("extended").Enum("basic", "extended")
	inspectArgFile  = inspectCmd.Arg("file", "model file").Required().ExistingFile()

	pluginsCmd = app.Command("plugins", "List available frontends and backends")

	configCmd   = app.Command("config", "Print the effective configuration as YAML")
	configWrite = configCmd.Flag("write", "save the configuration to this file instead").Short('w').String()

	versionCmd = app.Command("version", "Show version")
)

func main() {
	app.Version(version)
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configFile)
	if err != nil {
		logrus.WithError(err).Fatal("Load configuration failed")
	}
	logrus.SetLevel(cfg.Level())
	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.Debug("Log level set to debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	registry := plugin.NewDefaultRegistry()
	t := translate.New(registry, cfg.CodegenOptions())

	switch cmd {
	case translateCmd.FullCommand():
		err = runTranslate(ctx, t, cfg)
	case validateCmd.FullCommand():
		err = runValidate(ctx, t, frontendFor(*validateFrontend, cfg), *validateArgFile)
	case inspectCmd.FullCommand():
		err = runInspect(ctx, t, frontendFor(*inspectFrontend, cfg), *inspectArgFile)
	case pluginsCmd.FullCommand():
		printPlugins(registry)
	case configCmd.FullCommand():
		err = runConfig(cfg, *configWrite)
	case versionCmd.FullCommand():
		fmt.Printf("nnexport %s\n", version)
	}
	if err != nil {
		stop()
		logrus.WithError(err).Fatal("Command failed")
	}
}

func frontendFor(flag string, cfg config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.Frontend
}

func runTranslate(ctx context.Context, t *translate.Translator, cfg config.Config) error {
	req := translate.Request{
		Frontend: frontendFor(*translateFrontend, cfg),
		Backend:  cfg.Backend,
		Input:    *translateInput,
		OutDir:   cfg.OutDir,
		Name:     *translateName,
	}
	if *translateBackend != "" {
		req.Backend = *translateBackend
	}
	if *translateOutDir != "" {
		req.OutDir = *translateOutDir
	}

	res, err := t.Run(ctx, req)
	if err != nil {
		return err
	}
	for _, f := range res.Files {
		fmt.Println(f)
	}
	return nil
}

func runValidate(ctx context.Context, t *translate.Translator, frontendID, path string) error {
	m, id, err := t.Load(ctx, path, frontendID)
	if err != nil {
		return err
	}
	fmt.Printf("%s: valid (%s frontend, %d layers, %d weights, %d biases, checksum %s)\n",
		path, id, m.NumberOfLayers(), len(m.Weights()), len(m.Biases()), m.Checksum())
	return nil
}

func runInspect(ctx context.Context, t *translate.Translator, frontendID, path string) error {
	m, _, err := t.Load(ctx, path, frontendID)
	if err != nil {
		return err
	}
	if *inspectMarkers {
		schema, err := descriptor.ParseSchema(*inspectSchema)
		if err != nil {
			return err
		}
		markers, err := codegen.Markers(m, schema)
		if err != nil {
			return err
		}
		for _, mk := range markers {
			fmt.Printf("###%s### = %s\n", mk.Name, mk.Value)
		}
		return nil
	}

	fmt.Printf("model:    %s\n", m.Name())
	fmt.Printf("input:    %s\n", formatShape(m.Shape(0)))
	fmt.Printf("weights:  %d\n", len(m.Weights()))
	fmt.Printf("biases:   %d\n", len(m.Biases()))
	fmt.Printf("checksum: %s\n\n", m.Checksum())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tKIND\tACTIVATION\tOUTPUT\tWEIGHTS\tBIAS\tWINDOW")
	for i := 0; i < m.NumLayers(); i++ {
		l := m.Layer(i)
		kind := l.Kind.String()
		if l.Rank > 0 {
			kind = fmt.Sprintf("%s%dd", kind, l.Rank)
		}
		window := "-"
		if l.Kind.Spatial() && m.HasSpatialParams() {
			window = fmt.Sprintf("%dx%d /%dx%d %s", l.PoolHeight, l.PoolWidth, l.VerticalStride, l.HorizontalStride, l.Padding)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", i, kind, l.Activation, formatShape(l.Out),
			span(l.Kind.HasWeights(), l.WeightStart, len(l.Weights())), span(l.UseBias, l.BiasStart, len(l.Bias())), window)
	}
	return w.Flush()
}

func runConfig(cfg config.Config, path string) error {
	if path != "" {
		if err := cfg.Save(path); err != nil {
			return err
		}
		logrus.WithField("path", path).Info("Configuration saved")
		return nil
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func formatShape(s descriptor.Shape) string {
	return fmt.Sprintf("%dx%dx%d", s.Height, s.Width, s.Depth)
}

func span(ok bool, start, n int) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("[%d:%d]", start, start+n)
}

func printPlugins(r *plugin.Registry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FRONTEND\tEXTENSIONS\tDESCRIPTION")
	for _, f := range r.Frontends() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.ID(), strings.Join(f.Extensions(), ","), f.Description())
	}
	fmt.Fprintln(w, "\nBACKEND\tSCHEMA\tDESCRIPTION")
	for _, b := range r.Backends() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", b.ID(), b.Schema(), b.Description())
	}
	_ = w.Flush()
}
