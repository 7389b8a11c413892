package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dustguard/dustguard/internal/risk"
)

type computeFlags struct {
	scale  string
	format string

	pm25        float64
	aqi         float64
	temperature float64
	humidity    float64

	age          int
	conditions   []string
	sensitivity  string
	outdoorTime  float64
	activity     string
	mask         bool
	airPurifier  bool
	hasSymptoms  bool
	symptomPairs []string
}

func newComputeCmd(tablePath *string) *cobra.Command {
	f := &computeFlags{}

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Score one reading and set of personal factors",
		Example: `  phri compute --pm25 85 --aqi 160 --age 70 --condition asthma --sensitivity high
  phri compute --pm25 40 --aqi 110 --scale weighted --symptom cough=6 --format text`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reading := risk.EnvironmentalReading{PM25: f.pm25, AQI: f.aqi}
			if cmd.Flags().Changed("temperature") {
				reading.Temperature = &f.temperature
			}
			if cmd.Flags().Changed("humidity") {
				reading.Humidity = &f.humidity
			}
			return runCompute(cmd.OutOrStdout(), *tablePath, reading, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.scale, "scale", string(risk.ScalePoint), "Scale name")
	flags.StringVar(&f.format, "format", "json", "Output format: json or text")
	flags.Float64Var(&f.pm25, "pm25", 0, "PM2.5 concentration in µg/m³")
	flags.Float64Var(&f.aqi, "aqi", 0, "Air quality index")
	flags.Float64Var(&f.temperature, "temperature", 0, "Air temperature in °C")
	flags.Float64Var(&f.humidity, "humidity", 0, "Relative humidity in %")
	flags.IntVar(&f.age, "age", 30, "Age in years")
	flags.StringSliceVar(&f.conditions, "condition", nil, "Chronic condition (may be repeated)")
	flags.StringVar(&f.sensitivity, "sensitivity", string(risk.SensitivityLow), "Dust sensitivity: low, moderate or high")
	flags.Float64Var(&f.outdoorTime, "outdoor-minutes", 0, "Planned outdoor time in minutes")
	flags.StringVar(&f.activity, "activity", string(risk.ActivitySedentary), "Physical activity: sedentary or active")
	flags.BoolVar(&f.mask, "mask", false, "Wearing a mask outdoors")
	flags.BoolVar(&f.airPurifier, "air-purifier", false, "Has an air purifier at home")
	flags.BoolVar(&f.hasSymptoms, "has-symptoms", false, "Currently has symptoms")
	flags.StringSliceVar(&f.symptomPairs, "symptom", nil, "Present symptom as name=severity (may be repeated)")

	return cmd
}

func runCompute(w io.Writer, tablePath string, reading risk.EnvironmentalReading, f *computeFlags) error {
	engine, err := loadEngine(tablePath)
	if err != nil {
		return err
	}

	symptoms, err := parseSymptoms(f.symptomPairs)
	if err != nil {
		return exitError(exitInvalid, "%v", err)
	}

	factors := risk.PersonalFactors{
		Age:                f.age,
		DustSensitivity:    risk.Sensitivity(f.sensitivity),
		OutdoorTimeMinutes: f.outdoorTime,
		PhysicalActivity:   risk.Activity(f.activity),
		WearingMask:        f.mask,
		HasAirPurifier:     f.airPurifier,
		HasSymptoms:        f.hasSymptoms || len(symptoms) > 0,
		Symptoms:           symptoms,
	}
	for _, c := range f.conditions {
		factors.ChronicConditions = append(factors.ChronicConditions, risk.Condition(c))
	}

	score, err := engine.Compute(reading, factors, risk.ScaleName(f.scale))
	if err != nil {
		if risk.IsInputError(err) {
			return exitError(exitInvalid, "invalid input: %v", err)
		}
		return err
	}

	switch f.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(score)
	case "text":
		return writeText(w, score)
	default:
		return exitError(exitInvalid, "unknown format %q (allowed: json, text)", f.format)
	}
}

// parseSymptoms reads name=severity pairs. A bare name means severity 0.
func parseSymptoms(pairs []string) ([]risk.SymptomReport, error) {
	reports := make([]risk.SymptomReport, 0, len(pairs))
	for _, p := range pairs {
		name, sev, hasSev := strings.Cut(p, "=")
		report := risk.SymptomReport{Symptom: risk.Symptom(strings.TrimSpace(name)), Present: true}
		if hasSev {
			v, err := strconv.ParseFloat(strings.TrimSpace(sev), 64)
			if err != nil {
				return nil, fmt.Errorf("symptom %q: severity must be a number", p)
			}
			report.Severity = v
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func writeText(w io.Writer, s *risk.RiskScore) error {
	var b strings.Builder
	fmt.Fprintf(&b, "scale:    %s\n", s.Scale)
	fmt.Fprintf(&b, "score:    %g (raw %g)\n", s.Value, s.Raw)
	fmt.Fprintf(&b, "category: %s\n", s.Category)
	b.WriteString("breakdown:\n")
	for _, c := range s.Breakdown {
		sign := "+"
		if c.Reduces {
			sign = "-"
		}
		fmt.Fprintf(&b, "  %s %-24s %g\n", sign, c.Name, c.Value)
	}
	if len(s.Clamped) > 0 {
		fmt.Fprintf(&b, "clamped:  %s\n", strings.Join(s.Clamped, ", "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func loadEngine(tablePath string) (*risk.Engine, error) {
	if tablePath == "" {
		return risk.Default(), nil
	}
	table, err := risk.LoadTable(tablePath)
	if err != nil {
		return nil, exitError(exitInvalid, "%v", err)
	}
	engine, err := risk.NewEngine(table)
	if err != nil {
		return nil, exitError(exitInvalid, "%v", err)
	}
	return engine, nil
}
