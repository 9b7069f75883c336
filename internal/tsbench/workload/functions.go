package workload

import (
	_ "embed"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/tsbench/tsbench/internal/tsbench/configuration"
)

//go:embed functions.yaml
var builtinFunctions []byte

type Category string

const (
	Constant Category = "constant"
	Linear   Category = "linear"
	Random   Category = "random"
	Sin      Category = "sin"
	Square   Category = "square"
)

// categoryOrder is the order of the cumulative areas used for function assignment.
var categoryOrder = []Category{Constant, Linear, Random, Sin, Square}

// FunctionParam describes one synthesis function. It is immutable once loaded.
type FunctionParam struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`
	Min      float64  `json:"min"`
	Max      float64  `json:"max"`
	Cycle    int64    `json:"cycle,omitempty"`
}

// Value evaluates the function at timestamp t. rng is only consulted by random functions.
func (f FunctionParam) Value(t int64, rng *rand.Rand) float64 {
	switch f.Category {
	case Linear:
		return f.Min + (f.Max-f.Min)/float64(f.Cycle)*float64(positiveMod(t, f.Cycle))
	case Sin:
		half := (f.Max - f.Min) / 2
		return half*math.Sin(2*math.Pi/float64(f.Cycle)*float64(positiveMod(t, f.Cycle))) + f.Min + half
	case Square:
		if positiveMod(t, f.Cycle) < f.Cycle/2 {
			return f.Max
		}
		return f.Min
	case Random:
		return f.Min + rng.Float64()*(f.Max-f.Min)
	default:
		return f.Min
	}
}

type catalogueFile struct {
	Functions []FunctionParam `json:"functions"`
}

// Catalogue groups the available synthesis functions by category.
type Catalogue struct {
	byCategory map[Category][]FunctionParam
}

// BuiltinCatalogue parses the function list compiled into the binary.
func BuiltinCatalogue() (*Catalogue, error) {
	return ParseCatalogue(builtinFunctions)
}

func ParseCatalogue(data []byte) (*Catalogue, error) {
	var file catalogueFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, errors.Wrap(err, "parsing function catalogue")
	}
	c := &Catalogue{byCategory: map[Category][]FunctionParam{}}
	for _, f := range file.Functions {
		f.Category = Category(strings.ToLower(string(f.Category)))
		switch f.Category {
		case Linear, Sin, Square:
			if f.Cycle <= 0 {
				return nil, errors.Errorf("function %s: cycle must be positive for category %s", f.ID, f.Category)
			}
		case Constant, Random:
		default:
			return nil, errors.Errorf("function %s: unknown category %q", f.ID, f.Category)
		}
		if f.Max < f.Min {
			return nil, errors.Errorf("function %s: max %v is below min %v", f.ID, f.Max, f.Min)
		}
		c.byCategory[f.Category] = append(c.byCategory[f.Category], f)
	}
	return c, nil
}

func (c *Catalogue) Functions(category Category) []FunctionParam {
	return c.byCategory[category]
}

// AssignFunctions picks one function per sensor. The category is chosen by ratios and both draws come from a
// generator seeded with sensorSeed(seed, index), so a sensor's function does not depend on other sensors.
func AssignFunctions(c *Catalogue, ratios configuration.FunctionRatios, sensorCount int, seed int64) ([]FunctionParam, error) {
	weights := []float64{ratios.Constant, ratios.Linear, ratios.Random, ratios.Sin, ratios.Square}
	total := 0.0
	last := -1
	for i, w := range weights {
		if w > 0 && len(c.Functions(categoryOrder[i])) == 0 {
			return nil, fmt.Errorf("no %s functions are available but its ratio is %v", categoryOrder[i], w)
		}
		if w > 0 {
			last = i
		}
		total += w
	}
	if total <= 0 {
		return nil, errors.New("function ratios must not all be zero")
	}

	assigned := make([]FunctionParam, sensorCount)
	for i := range sensorCount {
		rng := rand.New(rand.NewSource(sensorSeed(seed, i)))
		property := rng.Float64() * total
		category := categoryOrder[last]
		cumulative := 0.0
		for j, w := range weights {
			cumulative += w
			if w > 0 && property < cumulative {
				category = categoryOrder[j]
				break
			}
		}
		candidates := c.Functions(category)
		assigned[i] = candidates[rng.Intn(len(candidates))]
	}
	return assigned, nil
}

// sensorSeed mixes seed and sensor so that neighbouring seeds do not yield shifted assignments.
func sensorSeed(seed int64, sensor int) int64 {
	return int64(splitmix64(splitmix64(uint64(seed)) ^ uint64(sensor)))
}

func splitmix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func positiveMod(t, cycle int64) int64 {
	r := t % cycle
	if r < 0 {
		r += cycle
	}
	return r
}
