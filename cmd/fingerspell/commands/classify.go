package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/gesture"
	"github.com/ayusman/fingerspell/internal/pose"
)

var (
	classifyLanguage   string
	classifySide       string
	classifyHandedness string
	classifyJSON       bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify FILE",
	Short: "Classify a landmarks JSON file against a dataset",
	Long: `Classify one hand pose. FILE holds either a JSON array of 21
{"x","y","z"} points or an object {"landmarks": [...], "handedness": "Left"}.
Use - to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifyLanguage, "language", "", "dataset language (default from config)")
	classifyCmd.Flags().StringVar(&classifySide, "side", "", "dataset side, left or right (default from config)")
	classifyCmd.Flags().StringVar(&classifyHandedness, "handedness", "", "hand that produced the pose (overrides the file)")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "output as JSON")
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	language, side, err := datasetTarget(cfg, classifyLanguage, classifySide)
	if err != nil {
		return err
	}

	data, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	hand, err := parsePose(data, classifyHandedness)
	if err != nil {
		return err
	}

	persist, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(persist)

	d, err := persist.Load(commandContext(cmd.Context()), side, language)
	if err != nil {
		return err
	}
	centroids, err := gesture.ComputeCentroids(d)
	if err != nil {
		return err
	}

	opts := cfg.SessionOptions()
	res := gesture.Classify(pose.Normalize(&hand, opts.Normalize), centroids, opts.Threshold)

	out := cmd.OutOrStdout()
	if classifyJSON {
		return json.NewEncoder(out).Encode(res)
	}
	return printResult(out, res)
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}

// parsePose accepts a bare point array or a {landmarks, handedness} object.
// A non-empty handedness argument wins over the file.
func parsePose(data []byte, handedness string) (detector.HandLandmarks, error) {
	var doc struct {
		Landmarks  []detector.Point3D `json:"landmarks"`
		Handedness string             `json:"handedness"`
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &doc.Landmarks); err != nil {
			return detector.HandLandmarks{}, fmt.Errorf("invalid landmarks: %w", err)
		}
	} else if err := json.Unmarshal(data, &doc); err != nil {
		return detector.HandLandmarks{}, fmt.Errorf("invalid landmarks: %w", err)
	}

	if handedness != "" {
		doc.Handedness = handedness
	}
	return detector.NewHandLandmarks(doc.Landmarks, detector.ParseHandedness(doc.Handedness))
}

func printResult(w io.Writer, res gesture.Result) error {
	if res.Nearest == "" {
		_, err := fmt.Fprintln(w, "No match: dataset is empty")
		return err
	}
	if res.Matched {
		_, err := fmt.Fprintf(w, "%s (distance %.4f)\n", res.Label, res.Distance)
		return err
	}
	_, err := fmt.Fprintf(w, "No match (nearest %s at %.4f)\n", res.Nearest, res.Distance)
	return err
}
