/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/notargets/golbm/InputParameters"
	"github.com/notargets/golbm/cuboid"
	"github.com/notargets/golbm/geometry"
	"github.com/notargets/golbm/loadbalancer"
	"github.com/notargets/golbm/parallel"
	"github.com/notargets/golbm/serializer"
)

type Decompose struct {
	InputFile   string
	Overlap     int
	Balancer    string
	WeightsFile string
	SaveName    string
	Perf        bool
	Extended    bool
}

// DecomposeCmd represents the decompose command
var DecomposeCmd = &cobra.Command{
	Use:   "decompose",
	Short: "Decompose a domain, balance it over ranks and prepare its materials",
	Long: `
Reads an input file, divides the domain into cuboids, assigns them to ranks,
applies the material steps and prints the geometry statistics,

golbm decompose -I input.yaml -r 4 --balancer graph`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		dc := &Decompose{}
		dc.InputFile, _ = cmd.Flags().GetString("inputFile")
		dc.Overlap, _ = cmd.Flags().GetInt("overlap")
		dc.Balancer, _ = cmd.Flags().GetString("balancer")
		dc.WeightsFile, _ = cmd.Flags().GetString("weights")
		dc.SaveName, _ = cmd.Flags().GetString("save")
		dc.Perf, _ = cmd.Flags().GetBool("perf")
		dc.Extended, _ = cmd.Flags().GetBool("extended")
		var ip *InputParameters.InputParameters
		if ip, err = processInput(dc); err != nil {
			return
		}
		ip.Print()
		np, opts, err := runOptions()
		if err != nil {
			return
		}
		return RunDecompose(np, opts, dc, ip)
	},
}

func init() {
	rootCmd.AddCommand(DecomposeCmd)
	DecomposeCmd.Flags().StringP("inputFile", "I", "", "input parameters, YAML (.yaml) or INI (.cfg, .ini)")
	DecomposeCmd.Flags().IntP("overlap", "v", 0, "ghost layer width, overrides the input file")
	DecomposeCmd.Flags().StringP("balancer", "b", "", "load balancer: block, roundrobin, heuristic or graph")
	DecomposeCmd.Flags().StringP("weights", "w", "", "table of cuboid weights, columns are id and weight")
	DecomposeCmd.Flags().StringP("save", "s", "", "checkpoint name for the prepared geometry")
	DecomposeCmd.Flags().Bool("perf", false, "count the instructions of the statistics update of every block")
	DecomposeCmd.Flags().BoolP("extended", "e", false, "print every cuboid")
}

var exampleFile = `
########################################
Title: "Channel"
Extent: [100, 20]
Delta: 1
Periodic: [true, false]
LoadBalancer: heuristic
Materials:
  - Op: rename
    From: empty
    To: wall
  - Op: rename
    From: wall
    To: fluid
    Shape:
      Type: cuboid
      Origin: [-1, 0.5]
      Extent: [102, 18]
  - Op: checkForErrors
########################################
`

func processInput(dc *Decompose) (ip *InputParameters.InputParameters, err error) {
	if len(dc.InputFile) == 0 {
		fmt.Printf("error: must supply an input parameters file (-I, --inputFile)\n")
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	if ip, err = InputParameters.ReadFile(dc.InputFile); err != nil {
		return
	}
	ip.SetDefaults()
	if dc.Overlap != 0 {
		ip.Overlap = dc.Overlap
	}
	if dc.Balancer != "" {
		ip.LoadBalancer = dc.Balancer
	}
	if dc.WeightsFile != "" {
		ip.WeightsFile = dc.WeightsFile
	}
	err = ip.Validate()
	return
}

func RunDecompose(np int, opts parallel.Options, dc *Decompose, ip *InputParameters.InputParameters) error {
	start := time.Now()
	err := parallel.Run(np, opts, func(ctx *parallel.RuntimeContext) (err error) {
		logger := ctx.Logger("decompose")
		var sg *geometry.SuperGeometry
		if sg, err = BuildSuperGeometry(ctx, ip); err != nil {
			return
		}
		sg.Print()
		if dc.Extended {
			sg.CuboidGeometry().PrintExtended(logger)
		}
		if dc.Perf {
			for _, bg := range sg.Blocks() {
				instructions, err := countInstructions(func() {
					bg.Statistics().SetDirty()
					bg.Statistics().Update()
				})
				if err != nil {
					ctx.MultiLogger("perf").Printf("cuboid %d: no instruction count: %v", bg.GlobalID(), err)
					break
				}
				ctx.MultiLogger("perf").Printf("cuboid %d: statistics update took %d instructions",
					bg.GlobalID(), instructions)
			}
		}
		if dc.SaveName != "" {
			// Checkpoints are best effort, a failed write does not end the run
			if e := serializer.SaveFile(ctx, dc.SaveName, sg); e != nil {
				ctx.MultiLogger("decompose").Printf("warning: checkpoint %s not written: %v", dc.SaveName, e)
			} else {
				logger.Printf("geometry saved as %s", dc.SaveName)
			}
		}
		return
	})
	if err == nil {
		fmt.Printf("decomposition on %d ranks took %v\n", np, time.Since(start))
	}
	return err
}

/*
BuildSuperGeometry divides the domain of ip into cuboids, one per rank unless
NumCuboids is given, balances them over the ranks of ctx and applies the
material steps. It is collective.
*/
func BuildSuperGeometry(ctx *parallel.RuntimeContext, ip *InputParameters.InputParameters) (sg *geometry.SuperGeometry, err error) {
	var (
		logger   = ctx.Logger("decompose")
		mother   *cuboid.Cuboid
		cg       *cuboid.CuboidGeometry
		strategy loadbalancer.Strategy
		lb       *loadbalancer.Balancer
		steps    []InputParameters.GeometryStep
	)
	domain := InputParameters.Shape{Type: "cuboid", Origin: ip.Origin, Extent: ip.Extent}
	ind, err := domain.Indicator(ip.Dimension)
	if err != nil {
		return
	}
	if mother, err = cuboid.NewCuboidFromIndicator(ind, ip.Delta, ip.Dimension); err != nil {
		return
	}
	nC := ip.NumCuboids
	if nC == 0 {
		nC = ctx.Size()
	}
	if cg, err = cuboid.NewCuboidGeometry(mother, nC); err != nil {
		return
	}
	p := ip.PeriodicAxes()
	cg.SetPeriodicity(p[0], p[1], p[2])
	if ip.WeightsFile != "" {
		if err = cuboid.ReadWeights(cg, ip.WeightsFile); err != nil {
			return
		}
	}
	if strategy, err = loadbalancer.NewStrategy(ip.LoadBalancer, ip.Overlap); err != nil {
		return
	}
	if lb, err = loadbalancer.New(strategy, cg, ctx.Rank(), ctx.Size(), ip.Overlap); err != nil {
		return
	}
	lb.Print(logger)
	loadbalancer.Analyze(cg, lb.Ranks(), ctx.Size(), ip.Overlap).Print(logger)
	if steps, err = ip.GeometrySteps(); err != nil {
		return
	}
	if sg, err = geometry.NewSuperGeometry(ctx, cg, lb, ip.Overlap); err != nil {
		return
	}
	for _, step := range steps {
		logger.Printf("material step %s", step.Name)
		if err = step.Apply(sg); err != nil {
			return nil, fmt.Errorf("material step %s: %w", step.Name, err)
		}
	}
	return
}
