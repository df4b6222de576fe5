package InputParameters

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/notargets/golbm/loadbalancer"
	"gopkg.in/gcfg.v1"
)

// Shape describes an indicator in an input file
type Shape struct {
	Type   string    `yaml:"Type"` // cuboid, circle, sphere, cylinder, everywhere
	Origin []float64 `yaml:"Origin"`
	Extent []float64 `yaml:"Extent"`
	Center []float64 `yaml:"Center"`
	Radius float64   `yaml:"Radius"`
	Height float64   `yaml:"Height"`
}

// MaterialStep is one geometry preparation operation. Materials are given
// by name or id.
type MaterialStep struct {
	Op     string `yaml:"Op"`
	From   string `yaml:"From"`
	To     string `yaml:"To"`
	Next   string `yaml:"Next"`
	Shape  *Shape `yaml:"Shape"`
	Offset []int  `yaml:"Offset"`
}

// Parameters obtained from the YAML or INI input file
type InputParameters struct {
	Title          string         `yaml:"Title"`
	Dimension      int            `yaml:"Dimension"`
	Origin         []float64      `yaml:"Origin"`
	Extent         []float64      `yaml:"Extent"` // Physical size of the domain
	Delta          float64        `yaml:"Delta"`
	NumCuboids     int            `yaml:"NumCuboids"` // 0 means one per rank
	Periodic       []bool         `yaml:"Periodic"`
	Overlap        int            `yaml:"Overlap"`
	LoadBalancer   string         `yaml:"LoadBalancer"`
	WeightsFile    string         `yaml:"WeightsFile"`
	Materials      []MaterialStep `yaml:"Materials"`
	Descriptor     string         `yaml:"Descriptor"`
	Tau            float64        `yaml:"Tau"`
	MaxIterations  int            `yaml:"MaxIterations"`
	StatIterations int            `yaml:"StatIterations"`
}

func (ip *InputParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

type iniStep struct {
	Op, From, To, Next string
	Shape              string
	Origin, Extent     []float64
	Center             []float64
	Radius, Height     float64
	Offset             []int
}

type iniConfig struct {
	Domain struct {
		Title     string
		Dimension int
		Origin    []float64
		Extent    []float64
		Delta     float64
	}
	Decomposition struct {
		NumCuboids   int
		Periodic     []bool
		Overlap      int
		LoadBalancer string
		WeightsFile  string
	}
	Simulation struct {
		Descriptor     string
		Tau            float64
		MaxIterations  int
		StatIterations int
	}
	Step map[string]*iniStep
}

/*
ParseINI reads the gcfg form of the parameters. Multi valued entries repeat
the key, material steps are subsections [Step "n"] applied in ascending n.
*/
func (ip *InputParameters) ParseINI(data []byte) (err error) {
	var cfg iniConfig
	if err = gcfg.ReadStringInto(&cfg, string(data)); err != nil {
		return
	}
	ip.Title = cfg.Domain.Title
	ip.Dimension = cfg.Domain.Dimension
	ip.Origin = cfg.Domain.Origin
	ip.Extent = cfg.Domain.Extent
	ip.Delta = cfg.Domain.Delta
	ip.NumCuboids = cfg.Decomposition.NumCuboids
	ip.Periodic = cfg.Decomposition.Periodic
	ip.Overlap = cfg.Decomposition.Overlap
	ip.LoadBalancer = cfg.Decomposition.LoadBalancer
	ip.WeightsFile = cfg.Decomposition.WeightsFile
	ip.Descriptor = cfg.Simulation.Descriptor
	ip.Tau = cfg.Simulation.Tau
	ip.MaxIterations = cfg.Simulation.MaxIterations
	ip.StatIterations = cfg.Simulation.StatIterations
	keys := make([]string, 0, len(cfg.Step))
	for k := range cfg.Step {
		if _, err = strconv.Atoi(k); err != nil {
			return fmt.Errorf("step %q: subsection names must be integers", k)
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})
	ip.Materials = nil
	for _, k := range keys {
		s := cfg.Step[k]
		step := MaterialStep{Op: s.Op, From: s.From, To: s.To, Next: s.Next, Offset: s.Offset}
		if s.Shape != "" {
			step.Shape = &Shape{Type: s.Shape, Origin: s.Origin, Extent: s.Extent,
				Center: s.Center, Radius: s.Radius, Height: s.Height}
		}
		ip.Materials = append(ip.Materials, step)
	}
	return
}

// ReadFile picks the format from the file extension
func ReadFile(path string) (ip *InputParameters, err error) {
	var data []byte
	if data, err = os.ReadFile(path); err != nil {
		return
	}
	ip = &InputParameters{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = ip.Parse(data)
	case ".ini", ".cfg", ".gcfg":
		err = ip.ParseINI(data)
	default:
		err = fmt.Errorf("unknown input file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return
}

// SetDefaults fills unset optional parameters
func (ip *InputParameters) SetDefaults() {
	if ip.Dimension == 0 {
		ip.Dimension = len(ip.Extent)
	}
	if len(ip.Origin) == 0 {
		ip.Origin = make([]float64, ip.Dimension)
	}
	if ip.Overlap == 0 {
		ip.Overlap = 1
	}
	if ip.LoadBalancer == "" {
		ip.LoadBalancer = "heuristic"
	}
	if ip.Descriptor == "" {
		ip.Descriptor = "D2Q9"
		if ip.Dimension == 3 {
			ip.Descriptor = "D3Q19"
		}
	}
	if ip.Tau == 0 {
		ip.Tau = 1
	}
	if ip.StatIterations == 0 {
		ip.StatIterations = 100
	}
}

func (ip *InputParameters) Validate() error {
	if ip.Dimension != 2 && ip.Dimension != 3 {
		return fmt.Errorf("dimension must be 2 or 3, have %d", ip.Dimension)
	}
	if len(ip.Extent) != ip.Dimension || len(ip.Origin) != ip.Dimension {
		return fmt.Errorf("origin %v and extent %v need %d components",
			ip.Origin, ip.Extent, ip.Dimension)
	}
	for _, e := range ip.Extent {
		if e <= 0 {
			return fmt.Errorf("extent %v must be positive", ip.Extent)
		}
	}
	if ip.Delta <= 0 {
		return fmt.Errorf("delta must be positive, have %g", ip.Delta)
	}
	if ip.NumCuboids < 0 {
		return fmt.Errorf("negative number of cuboids %d", ip.NumCuboids)
	}
	if len(ip.Periodic) > ip.Dimension {
		return fmt.Errorf("periodicity %v for %d dimensions", ip.Periodic, ip.Dimension)
	}
	if ip.Overlap < 1 {
		return fmt.Errorf("overlap must be at least 1, have %d", ip.Overlap)
	}
	if _, err := loadbalancer.NewStrategy(ip.LoadBalancer, ip.Overlap); err != nil {
		return err
	}
	if ip.Tau <= .5 {
		return fmt.Errorf("relaxation time %g must exceed 0.5", ip.Tau)
	}
	_, err := ip.GeometrySteps()
	return err
}

// PeriodicAxes expands Periodic to three axes
func (ip *InputParameters) PeriodicAxes() (p [3]bool) {
	copy(p[:], ip.Periodic)
	return
}

func (ip *InputParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%d]\t\t\t\t= Dimension\n", ip.Dimension)
	fmt.Printf("%v\t\t\t= Origin\n", ip.Origin)
	fmt.Printf("%v\t\t\t= Extent\n", ip.Extent)
	fmt.Printf("%8.5f\t\t= Delta\n", ip.Delta)
	fmt.Printf("[%d]\t\t\t\t= Number of Cuboids\n", ip.NumCuboids)
	fmt.Printf("%v\t\t= Periodic\n", ip.Periodic)
	fmt.Printf("[%d]\t\t\t\t= Overlap\n", ip.Overlap)
	fmt.Printf("[%s]\t\t\t= Load Balancer\n", ip.LoadBalancer)
	if ip.WeightsFile != "" {
		fmt.Printf("[%s]\t= Weights File\n", ip.WeightsFile)
	}
	fmt.Printf("[%s]\t\t\t= Descriptor\n", ip.Descriptor)
	fmt.Printf("%8.5f\t\t= Tau\n", ip.Tau)
	fmt.Printf("[%d]\t\t\t\t= Max Iterations\n", ip.MaxIterations)
	for i, step := range ip.Materials {
		fmt.Printf("Materials[%d] = %s %s -> %s", i, step.Op, step.From, step.To)
		if step.Shape != nil {
			fmt.Printf(" in %s", step.Shape.Type)
		}
		fmt.Printf("\n")
	}
}
