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

	"github.com/spf13/cobra"

	"github.com/notargets/golbm/InputParameters"
	"github.com/notargets/golbm/cuboid"
	"github.com/notargets/golbm/functors/indicator"
	"github.com/notargets/golbm/geometry"
	"github.com/notargets/golbm/lattice"
	"github.com/notargets/golbm/loadbalancer"
	"github.com/notargets/golbm/parallel"
	"github.com/notargets/golbm/types"
)

type ContactAngle struct {
	NX, NY     float64
	Descriptor string
	Steps      int
	StatIter   int
	Tau        float64
	DropletRho float64 // Density excess inside the droplet
}

type ContactAngleResult struct {
	InitialMass, FinalMass float64
	AvRho                  float64
	Walls, Fluid           int
}

// ContactAngleCmd represents the contactAngle command
var ContactAngleCmd = &cobra.Command{
	Use:   "contactAngle",
	Short: "Droplet on a wall in a channel periodic in x",
	Long: `
Two dimensional droplet resting on the lower wall of a channel that is
periodic in x, relaxed with a BGK lattice,

golbm contactAngle -r 4 -s 2000`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ca := &ContactAngle{NX: 75, NY: 50, Descriptor: "D2Q9"}
		ca.Steps, _ = cmd.Flags().GetInt("steps")
		ca.StatIter, _ = cmd.Flags().GetInt("statIter")
		ca.Tau, _ = cmd.Flags().GetFloat64("tau")
		ca.DropletRho, _ = cmd.Flags().GetFloat64("dropletRho")
		if inputFile, _ := cmd.Flags().GetString("inputFile"); inputFile != "" {
			var ip *InputParameters.InputParameters
			if ip, err = InputParameters.ReadFile(inputFile); err != nil {
				return
			}
			ip.SetDefaults()
			if err = ip.Validate(); err != nil {
				return
			}
			ip.Print()
			if err = ca.ApplyInput(ip); err != nil {
				return
			}
		}
		if ca.Tau <= .5 {
			return fmt.Errorf("relaxation time %g must exceed 0.5", ca.Tau)
		}
		np, opts, err := runOptions()
		if err != nil {
			return
		}
		var res ContactAngleResult
		if res, err = RunContactAngle(np, opts, ca); err != nil {
			return
		}
		fmt.Printf("average density %.10g after %d steps, mass drift %.3g\n",
			res.AvRho, ca.Steps, res.FinalMass-res.InitialMass)
		return
	},
}

func init() {
	rootCmd.AddCommand(ContactAngleCmd)
	ContactAngleCmd.Flags().IntP("steps", "s", 1000, "number of time steps")
	ContactAngleCmd.Flags().IntP("statIter", "i", 100, "time steps between statistics output")
	ContactAngleCmd.Flags().Float64P("tau", "t", 1, "lattice relaxation time")
	ContactAngleCmd.Flags().Float64("dropletRho", .05, "initial density excess inside the droplet")
	ContactAngleCmd.Flags().StringP("inputFile", "I", "", "input parameters whose Extent, Descriptor, Tau,\n"+
		"MaxIterations and StatIterations replace the flags")
}

/*
ApplyInput takes the channel size in lattice units and the lattice controls
from ip. An unset iteration count keeps the flag value. The setup is two
dimensional, so ip must describe a 2D domain and a 2D descriptor.
*/
func (ca *ContactAngle) ApplyInput(ip *InputParameters.InputParameters) (err error) {
	if ip.Dimension != 2 {
		return fmt.Errorf("contact angle setup is two dimensional, input has dimension %d", ip.Dimension)
	}
	var desc *lattice.Descriptor
	if desc, err = lattice.DescriptorByName(ip.Descriptor); err != nil {
		return
	}
	if desc.D != 2 {
		return fmt.Errorf("descriptor %s for a two dimensional setup", desc.Name)
	}
	ca.NX, ca.NY = ip.Extent[0], ip.Extent[1]
	if ip.Delta > 0 {
		ca.NX, ca.NY = ca.NX/ip.Delta, ca.NY/ip.Delta
	}
	ca.Descriptor = desc.Name
	ca.Tau = ip.Tau
	if ip.MaxIterations > 0 {
		ca.Steps = ip.MaxIterations
	}
	if ip.StatIterations > 0 {
		ca.StatIter = ip.StatIterations
	}
	return
}

// RunContactAngle returns the results seen by rank 0
func RunContactAngle(np int, opts parallel.Options, ca *ContactAngle) (res ContactAngleResult, err error) {
	err = parallel.Run(np, opts, func(ctx *parallel.RuntimeContext) (err error) {
		var (
			sg *geometry.SuperGeometry
			sl *lattice.SuperLattice
			r  ContactAngleResult
		)
		if sg, err = ca.prepareGeometry(ctx); err != nil {
			return
		}
		if sl, err = ca.prepareLattice(sg); err != nil {
			return
		}
		r.Walls = sg.Statistics().NVoxel(types.MaterialWall)
		r.Fluid = sg.Statistics().NVoxel(types.MaterialFluid)
		r.InitialMass = sl.TotalMass()
		if err = ca.simulate(ctx, sl); err != nil {
			return
		}
		r.FinalMass = sl.TotalMass()
		r.AvRho = sl.AverageRho()
		if ctx.IsMain() {
			res = r
		}
		return
	})
	return
}

func (ca *ContactAngle) prepareGeometry(ctx *parallel.RuntimeContext) (sg *geometry.SuperGeometry, err error) {
	var (
		logger       = ctx.Logger("prepareGeometry")
		domain, wall *indicator.SDF
		mother       *cuboid.Cuboid
		cg           *cuboid.CuboidGeometry
		lb           *loadbalancer.Balancer
	)
	logger.Printf("Prepare Geometry ...")
	if domain, err = indicator.Cuboid2D(types.Vector{ca.NX, ca.NY}, types.Vector{}); err != nil {
		return
	}
	if mother, err = cuboid.NewCuboidFromIndicator(domain, 1, 2); err != nil {
		return
	}
	if cg, err = cuboid.NewCuboidGeometry(mother, ctx.Size()); err != nil {
		return
	}
	cg.SetPeriodicity(true, false, false)
	if lb, err = loadbalancer.New(loadbalancer.Heuristic{}, cg, ctx.Rank(), ctx.Size(), 1); err != nil {
		return
	}
	lb.Print(logger)
	if sg, err = geometry.NewSuperGeometry(ctx, cg, lb, 1); err != nil {
		return
	}
	sg.Rename(types.MaterialEmpty, types.MaterialWall)
	// Fluid reaches past the periodic ends, walls stay at the bottom and top rows
	if wall, err = indicator.Cuboid2D(types.Vector{ca.NX + 2, ca.NY - 1}, types.Vector{-1, .5}); err != nil {
		return
	}
	sg.RenameIn(types.MaterialWall, types.MaterialFluid, wall)
	sg.InnerClean(true)
	if sg.CheckForErrors(true) {
		return nil, fmt.Errorf("geometry has fluid cells next to empty cells")
	}
	sg.Print()
	logger.Printf("Prepare Geometry ... OK")
	return
}

func (ca *ContactAngle) prepareLattice(sg *geometry.SuperGeometry) (sl *lattice.SuperLattice, err error) {
	var (
		logger  = sg.Context().Logger("prepareLattice")
		droplet *indicator.SDF
		desc    *lattice.Descriptor
	)
	logger.Printf("Prepare Lattice ...")
	desc = lattice.D2Q9
	if ca.Descriptor != "" {
		if desc, err = lattice.DescriptorByName(ca.Descriptor); err != nil {
			return
		}
	}
	if sl, err = lattice.NewSuperLattice(sg, desc); err != nil {
		return
	}
	sl.DefineDynamics(types.MaterialFluid, lattice.BGK{Omega: 1 / ca.Tau})
	sl.DefineDynamics(types.MaterialWall, lattice.BounceBack{})
	if droplet, err = indicator.Circle2D(types.Vector{ca.NX / 2, 0}, .25*ca.NX); err != nil {
		return
	}
	sl.IniEquilibriumFunc(types.MaterialFluid, func(x types.Vector) (float64, types.Vector) {
		if droplet.Contains(x) {
			return 1 + ca.DropletRho, types.Vector{}
		}
		return 1, types.Vector{}
	})
	if err = sl.Initialize(); err != nil {
		return
	}
	if err = sl.AddPostProcessor(lattice.StagePreCoupling, lattice.RhoStatistics{}); err != nil {
		return
	}
	comm := sl.Communicator(lattice.StagePreCoupling)
	field, err := sl.Field("rho")
	if err != nil {
		return
	}
	comm.RequestField(field)
	if err = comm.RequestOverlap(1); err != nil {
		return
	}
	if err = comm.ExchangeRequests(); err != nil {
		return
	}
	logger.Printf("Prepare Lattice ... OK, %s exchanged at %s", field.Name(), lattice.StagePreCoupling)
	return
}

func (ca *ContactAngle) simulate(ctx *parallel.RuntimeContext, sl *lattice.SuperLattice) (err error) {
	logger := ctx.Logger("simulate")
	comm := sl.Communicator(lattice.StagePreCoupling)
	for iT := 0; iT < ca.Steps; iT++ {
		sl.ExecutePostProcessors(lattice.StagePreCoupling)
		if err = comm.Communicate(); err != nil {
			return
		}
		if err = sl.CollideAndStream(); err != nil {
			return
		}
		if ca.StatIter > 0 && iT%ca.StatIter == 0 {
			sl.PrintStatistics()
		}
	}
	logger.Printf("average density %.10g", sl.AverageRho())
	return
}
