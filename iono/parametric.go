/*
Copyright (c) Facebook, Inc. and its affiliates.

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

package iono

import (
	"fmt"
	"math"
	"time"

	"github.com/Knetic/govaluate"
)

// ParametricHelp documents the expression surface for operators
// composing the diurnal model's height/TEC formulas, the same way
// the clock daemon documents its -m/-w formula language.
const ParametricHelp = `When composing height and tec formulas, here is what you can do:
supported operations:
  evaluation is done with govaluate
supported variables:
  solar_zenith_deg - solar zenith angle in degrees at the query point
  lat_deg, lon_deg  - query latitude/longitude in degrees
  doy               - day of year, 1-366
supported functions:
  cos(x), sin(x), abs(x) - standard trigonometric/absolute value functions operating in degrees for cos/sin`

var parametricFunctions = map[string]govaluate.ExpressionFunction{
	"cos": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("cos: wrong number of arguments: want 1, got %d", len(args))
		}
		return math.Cos(args[0].(float64) * math.Pi / 180), nil
	},
	"sin": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("sin: wrong number of arguments: want 1, got %d", len(args))
		}
		return math.Sin(args[0].(float64) * math.Pi / 180), nil
	},
	"abs": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs: wrong number of arguments: want 1, got %d", len(args))
		}
		return math.Abs(args[0].(float64)), nil
	},
}

var parametricSupportedVars = map[string]bool{
	"solar_zenith_deg": true,
	"lat_deg":          true,
	"lon_deg":          true,
	"doy":              true,
}

func prepareParametricExpr(exprStr string) (*govaluate.EvaluableExpression, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(exprStr, parametricFunctions)
	if err != nil {
		return nil, fmt.Errorf("iono: parsing expression %q: %w", exprStr, err)
	}
	for _, v := range expr.Vars() {
		if !parametricSupportedVars[v] {
			return nil, fmt.Errorf("iono: unsupported variable %q in expression %q", v, exprStr)
		}
	}
	return expr, nil
}

// ParametricModel is tier (b): a diurnal model whose height and TEC
// formulas are operator-configurable expressions evaluated against
// solar geometry, rather than hard-coded constants.
type ParametricModel struct {
	heightExprStr string
	tecExprStr    string
	heightExpr    *govaluate.EvaluableExpression
	tecExpr       *govaluate.EvaluableExpression
}

// DefaultHeightFormula and DefaultTECFormula give a smooth diurnal
// swing between typical day/night F-layer values.
const (
	DefaultHeightFormula = "250 + 50 * cos(solar_zenith_deg)"
	DefaultTECFormula    = "15 + 15 * cos(solar_zenith_deg)"
)

// NewParametricModel prepares a parametric model from height/TEC
// expression strings, failing fast if either references an
// unsupported variable or doesn't parse.
func NewParametricModel(heightExprStr, tecExprStr string) (*ParametricModel, error) {
	heightExpr, err := prepareParametricExpr(heightExprStr)
	if err != nil {
		return nil, fmt.Errorf("iono: height formula: %w", err)
	}
	tecExpr, err := prepareParametricExpr(tecExprStr)
	if err != nil {
		return nil, fmt.Errorf("iono: tec formula: %w", err)
	}
	return &ParametricModel{
		heightExprStr: heightExprStr,
		tecExprStr:    tecExprStr,
		heightExpr:    heightExpr,
		tecExpr:       tecExpr,
	}, nil
}

func (p *ParametricModel) params(utc time.Time, latDeg, lonDeg float64) map[string]interface{} {
	return map[string]interface{}{
		"solar_zenith_deg": solarZenithDeg(utc, latDeg, lonDeg),
		"lat_deg":          latDeg,
		"lon_deg":          lonDeg,
		"doy":              float64(utc.YearDay()),
	}
}

func (p *ParametricModel) LayerHeightKm(utc time.Time, latDeg, lonDeg float64) float64 {
	v, err := p.heightExpr.Evaluate(p.params(utc, latDeg, lonDeg))
	if err != nil {
		return 0
	}
	f, _ := v.(float64)
	return f
}

func (p *ParametricModel) TECU(utc time.Time, latDeg, lonDeg float64) float64 {
	v, err := p.tecExpr.Evaluate(p.params(utc, latDeg, lonDeg))
	if err != nil {
		return 0
	}
	f, _ := v.(float64)
	if f < 0 {
		return 0
	}
	return f
}

// solarZenithDeg approximates the solar zenith angle at a point and
// time, sufficient to drive a diurnal TEC/height swing without a full
// ephemeris.
func solarZenithDeg(utc time.Time, latDeg, lonDeg float64) float64 {
	localHour := solarLocalHour(utc, lonDeg)
	hourAngleDeg := (localHour - 12) * 15

	decl := 23.44 * math.Sin(2*math.Pi*float64(utc.YearDay()-81)/365.25)

	latRad := latDeg * math.Pi / 180
	declRad := decl * math.Pi / 180
	haRad := hourAngleDeg * math.Pi / 180

	cosZenith := math.Sin(latRad)*math.Sin(declRad) + math.Cos(latRad)*math.Cos(declRad)*math.Cos(haRad)
	if cosZenith > 1 {
		cosZenith = 1
	}
	if cosZenith < -1 {
		cosZenith = -1
	}
	return math.Acos(cosZenith) * 180 / math.Pi
}
