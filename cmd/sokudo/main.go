package main

import (
	"fmt"
	"os"

	"github.com/Rice-Rocket/sokudo/playback"
	"github.com/Rice-Rocket/sokudo/scene"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
)

var (
	duration  float64
	timestep  float64
	outFile   string
	plotBody  int
	plotAxis  int
	plotWidth int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sokudo",
		Short: "rigid body physics simulator",
	}

	bakeCmd := &cobra.Command{
		Use:   "bake [scene.yaml]",
		Short: "simulate a scene and record the run to a history file",
		Args:  cobra.ExactArgs(1),
		RunE:  bake,
	}
	bakeCmd.Flags().Float64Var(&duration, "time", 10.0, "duration in seconds")
	bakeCmd.Flags().Float64Var(&timestep, "dt", 0, "timestep override (0 uses the scene's)")
	bakeCmd.Flags().StringVarP(&outFile, "out", "o", "history.json", "output history file")

	playCmd := &cobra.Command{
		Use:   "play [history.json]",
		Short: "replay a recorded history in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  play,
	}

	runCmd := &cobra.Command{
		Use:   "run [scene.yaml]",
		Short: "simulate a scene and view it immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	runCmd.Flags().Float64Var(&duration, "time", 10.0, "duration in seconds")
	runCmd.Flags().Float64Var(&timestep, "dt", 0, "timestep override (0 uses the scene's)")

	plotCmd := &cobra.Command{
		Use:   "plot [history.json]",
		Short: "plot one coordinate of one body over time",
		Args:  cobra.ExactArgs(1),
		RunE:  plot,
	}
	plotCmd.Flags().IntVar(&plotBody, "body", 0, "body index")
	plotCmd.Flags().IntVar(&plotAxis, "axis", 1, "coordinate axis (0=x 1=y 2=z)")
	plotCmd.Flags().IntVar(&plotWidth, "width", 70, "plot width in columns")

	rootCmd.AddCommand(bakeCmd, playCmd, runCmd, plotCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func bake(cmd *cobra.Command, args []string) error {
	history, err := simulate(args[0])
	if err != nil {
		return err
	}
	if err := history.Save(outFile); err != nil {
		return err
	}
	fmt.Printf("baked %d frames to %s\n", len(history.Frames), outFile)
	return nil
}

func play(cmd *cobra.Command, args []string) error {
	history, err := playback.Load(args[0])
	if err != nil {
		return err
	}
	return playback.NewViewer(history).Run()
}

func run(cmd *cobra.Command, args []string) error {
	history, err := simulate(args[0])
	if err != nil {
		return err
	}
	return playback.NewViewer(history).Run()
}

func plot(cmd *cobra.Command, args []string) error {
	history, err := playback.Load(args[0])
	if err != nil {
		return err
	}
	if plotAxis < 0 || plotAxis > 2 {
		return fmt.Errorf("axis must be 0, 1 or 2")
	}

	series := make([]float64, 0, len(history.Frames))
	for _, frame := range history.Frames {
		if plotBody < 0 || plotBody >= len(frame.Bodies) {
			return fmt.Errorf("body index %d out of range (%d bodies)", plotBody, len(frame.Bodies))
		}
		series = append(series, frame.Bodies[plotBody].Position[plotAxis])
	}
	if len(series) == 0 {
		return fmt.Errorf("history is empty")
	}

	axisName := [...]string{"x", "y", "z"}[plotAxis]
	caption := fmt.Sprintf("body %d %s over %.2fs", plotBody, axisName, history.Frames[len(history.Frames)-1].Time)
	fmt.Println(asciigraph.Plot(series,
		asciigraph.Height(16),
		asciigraph.Width(plotWidth),
		asciigraph.Caption(caption)))
	return nil
}

func simulate(scenePath string) (*playback.History, error) {
	cfg, err := scene.Load(scenePath)
	if err != nil {
		return nil, err
	}
	world, _, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	dt := cfg.Timestep
	if timestep > 0 {
		dt = timestep
	}
	if dt <= 0 {
		return nil, fmt.Errorf("timestep must be positive, got %v", dt)
	}

	steps := int(duration / dt)
	recorder := playback.NewRecorder(dt)
	recorder.Record(world, 0)
	for i := 1; i <= steps; i++ {
		world.Step(dt)
		recorder.Record(world, float64(i)*dt)
	}
	return recorder.History(), nil
}
