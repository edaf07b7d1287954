// Package utm converts between WGS84 lon/lat and Universal Transverse Mercator
// coordinates identified by their EPSG code (326xx north, 327xx south).
//
// The transformation uses the Krüger series to third order in n, which is
// accurate to well under a millimetre inside a zone.
package utm

import (
	"errors"
	"fmt"
	"math"
)

var ErrNotUTM = errors.New("epsg code is not a WGS84 UTM zone")

const (
	// WGS84 ellipsoid.
	semiMajor  = 6378137.0
	flattening = 1 / 298.257223563

	k0            = 0.9996
	falseEasting  = 500000.0
	falseNorthing = 10000000.0

	// WGS84 is the geographic EPSG code.
	WGS84 = 4326
)

var (
	n    = flattening / (2 - flattening)
	ecc  = math.Sqrt(flattening * (2 - flattening))
	bigA = semiMajor / (1 + n) * (1 + n*n/4 + n*n*n*n/64)

	alpha = [3]float64{
		n/2 - 2*n*n/3 + 5*n*n*n/16,
		13*n*n/48 - 3*n*n*n/5,
		61 * n * n * n / 240,
	}
	beta = [3]float64{
		n/2 - 2*n*n/3 + 37*n*n*n/96,
		n*n/48 + n*n*n/15,
		17 * n * n * n / 480,
	}
	delta = [3]float64{
		2*n - 2*n*n/3 - 2*n*n*n,
		7*n*n/3 - 8*n*n*n/5,
		56 * n * n * n / 15,
	}
)

// ZoneEPSG returns the WGS84 UTM EPSG code of the zone containing lon/lat.
// No Norway/Svalbard exceptions are applied.
func ZoneEPSG(lon, lat float64) int {
	zone := int(math.Mod(math.Floor((lon+180)/6), 60)) + 1
	if zone <= 0 {
		zone += 60
	}
	if lat >= 0 {
		return 32600 + zone
	}
	return 32700 + zone
}

// Zone splits an EPSG code into zone number and hemisphere.
func Zone(epsg int) (zone int, north bool, err error) {
	switch {
	case epsg > 32600 && epsg <= 32660:
		return epsg - 32600, true, nil
	case epsg > 32700 && epsg <= 32760:
		return epsg - 32700, false, nil
	}
	return 0, false, fmt.Errorf("%w: %d", ErrNotUTM, epsg)
}

func centralMeridian(zone int) float64 {
	return float64(zone*6-183) * math.Pi / 180
}

// Forward projects lon/lat degrees into the given UTM zone.
func Forward(lon, lat float64, epsg int) (x, y float64, err error) {
	zone, north, err := Zone(epsg)
	if err != nil {
		return 0, 0, err
	}
	phi := lat * math.Pi / 180
	dl := lon*math.Pi/180 - centralMeridian(zone)

	sinPhi := math.Sin(phi)
	t := math.Sinh(math.Atanh(sinPhi) - ecc*math.Atanh(ecc*sinPhi))
	xiP := math.Atan2(t, math.Cos(dl))
	etaP := math.Atanh(math.Sin(dl) / math.Sqrt(1+t*t))

	xi, eta := xiP, etaP
	for j := 1; j <= 3; j++ {
		a := alpha[j-1]
		xi += a * math.Sin(2*float64(j)*xiP) * math.Cosh(2*float64(j)*etaP)
		eta += a * math.Cos(2*float64(j)*xiP) * math.Sinh(2*float64(j)*etaP)
	}

	x = falseEasting + k0*bigA*eta
	y = k0 * bigA * xi
	if !north {
		y += falseNorthing
	}
	return x, y, nil
}

// Inverse converts UTM easting/northing in the given zone back to lon/lat.
func Inverse(x, y float64, epsg int) (lon, lat float64, err error) {
	zone, north, err := Zone(epsg)
	if err != nil {
		return 0, 0, err
	}
	if !north {
		y -= falseNorthing
	}
	xi := y / (k0 * bigA)
	eta := (x - falseEasting) / (k0 * bigA)

	xiP, etaP := xi, eta
	for j := 1; j <= 3; j++ {
		b := beta[j-1]
		xiP -= b * math.Sin(2*float64(j)*xi) * math.Cosh(2*float64(j)*eta)
		etaP -= b * math.Cos(2*float64(j)*xi) * math.Sinh(2*float64(j)*eta)
	}

	chi := math.Asin(math.Sin(xiP) / math.Cosh(etaP))
	phi := chi
	for j := 1; j <= 3; j++ {
		phi += delta[j-1] * math.Sin(2*float64(j)*chi)
	}
	lambda := centralMeridian(zone) + math.Atan2(math.Sinh(etaP), math.Cos(xiP))

	return lambda * 180 / math.Pi, phi * 180 / math.Pi, nil
}

// WKT returns an OGC WKT definition of the UTM zone suitable for a
// GeoPackage spatial reference table.
func WKT(epsg int) (string, error) {
	zone, north, err := Zone(epsg)
	if err != nil {
		return "", err
	}
	hemi, fn := "N", 0.0
	if !north {
		hemi, fn = "S", falseNorthing
	}
	return fmt.Sprintf(`PROJCS["WGS 84 / UTM zone %d%s",%s,PROJECTION["Transverse_Mercator"],`+
		`PARAMETER["latitude_of_origin",0],PARAMETER["central_meridian",%d],`+
		`PARAMETER["scale_factor",%g],PARAMETER["false_easting",%g],PARAMETER["false_northing",%g],`+
		`UNIT["metre",1,AUTHORITY["EPSG","9001"]],AXIS["Easting",EAST],AXIS["Northing",NORTH],`+
		`AUTHORITY["EPSG","%d"]]`,
		zone, hemi, GeographicWKT, zone*6-183, k0, falseEasting, fn, epsg), nil
}

// GeographicWKT is the WKT definition of EPSG:4326.
const GeographicWKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],` +
	`AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],` +
	`UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`
