// 包 gazetteer：地名库（GeoNames 城市表）与国家表的加载
// 背景：整表载入内存，每次运行只加载一次；匹配键为 ASCII 折叠后的小写名称。
package gazetteer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mapoc/internal/logger"
	"mapoc/internal/textfold"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// City：地名库中的一行；Extra 保存其余透传列
type City struct {
	GeonameID   string
	Name        string
	ASCIIName   string
	Key         string
	CountryCode string
	Latitude    float64
	Longitude   float64
	Population  int64
	Extra       map[string]string
}

type Country struct {
	Code string
	Name string
}

// Table：加载后的只读表，行序即文件行序
type Table struct {
	Cities    []City
	Countries []Country
}

// GeoNames 原始导出（cities*.txt）的列顺序
var geonamesColumns = []string{
	"geonameid", "name", "asciiname", "alternatenames", "latitude", "longitude",
	"feature class", "feature code", "country code", "cc2", "admin1 code",
	"admin2 code", "admin3 code", "admin4 code", "population", "elevation",
	"dem", "timezone", "modification date",
}

var ErrMissingColumn = errors.New("missing required column")

// NewCity：由原始字段构造城市行并计算匹配键
func NewCity(id, name, asciiName, countryCode string, lat, lon float64, pop int64) City {
	key := asciiName
	if key == "" {
		key = name
	}
	return City{
		GeonameID:   id,
		Name:        name,
		ASCIIName:   asciiName,
		Key:         textfold.Key(key),
		CountryCode: countryCode,
		Latitude:    lat,
		Longitude:   lon,
		Population:  pop,
	}
}

// CountryName：按国家代码查找名称
func (t *Table) CountryName(code string) (string, bool) {
	for _, c := range t.Countries {
		if c.Code == code {
			return c.Name, true
		}
	}
	return "", false
}

// LoadFiles：读取城市表与国家表；城市表为 .txt 时按 GeoNames 原始制表符格式解析
func LoadFiles(citiesPath, countriesPath string) (*Table, error) {
	cities, err := LoadCitiesFile(citiesPath)
	if err != nil {
		return nil, err
	}
	countries, err := LoadCountriesFile(countriesPath)
	if err != nil {
		return nil, err
	}
	logger.L().Debug("gazetteer_loaded", "cities", len(cities), "countries", len(countries))
	return &Table{Cities: cities, Countries: countries}, nil
}

func LoadCitiesFile(path string) ([]City, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return ReadGeonamesDump(f)
	}
	return ReadCitiesCSV(f)
}

func LoadCountriesFile(path string) ([]Country, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCountriesCSV(f)
}

// ReadCitiesCSV：带表头的 CSV；允许首列为无名索引列
// 约束：必需列 name/asciiname/country code/latitude/longitude/population，表头大小写不敏感
func ReadCitiesCSV(r io.Reader) ([]City, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read cities header: %w", err)
	}
	cols, err := columnIndex(header, "name", "asciiname", "country code", "latitude", "longitude", "population")
	if err != nil {
		return nil, err
	}
	var out []City
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("cities line %d: %w", line, err)
		}
		c, err := cityFromRecord(rec, header, cols)
		if err != nil {
			return nil, fmt.Errorf("cities line %d: %w", line, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// ReadGeonamesDump：GeoNames cities*.txt（制表符分隔、无表头）
func ReadGeonamesDump(r io.Reader) ([]City, error) {
	cols, _ := columnIndex(geonamesColumns, "name", "asciiname", "country code", "latitude", "longitude", "population")
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var out []City
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		rec := strings.Split(text, "\t")
		if len(rec) < len(geonamesColumns) {
			return nil, fmt.Errorf("geonames line %d: want %d fields, got %d", line, len(geonamesColumns), len(rec))
		}
		c, err := cityFromRecord(rec, geonamesColumns, cols)
		if err != nil {
			return nil, fmt.Errorf("geonames line %d: %w", line, err)
		}
		out = append(out, c)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadCountriesCSV：表头含 Name、Code 两列（datasets/country-list 格式）
func ReadCountriesCSV(r io.Reader) ([]Country, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read countries header: %w", err)
	}
	cols, err := columnIndex(header, "name", "code")
	if err != nil {
		return nil, err
	}
	var out []Country
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Country{Name: field(rec, cols["name"]), Code: field(rec, cols["code"])})
	}
	return out, nil
}

func columnIndex(header []string, required ...string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		k := strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[k]; !dup {
			cols[k] = i
		}
	}
	for _, r := range required {
		if _, ok := cols[r]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, r)
		}
	}
	return cols, nil
}

func cityFromRecord(rec, header []string, cols map[string]int) (City, error) {
	lat, err := parseFloat(field(rec, cols["latitude"]))
	if err != nil {
		return City{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := parseFloat(field(rec, cols["longitude"]))
	if err != nil {
		return City{}, fmt.Errorf("longitude: %w", err)
	}
	var pop int64
	if s := strings.TrimSpace(field(rec, cols["population"])); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return City{}, fmt.Errorf("population: %w", err)
		}
		pop = int64(f)
	}
	id := ""
	if i, ok := cols["geonameid"]; ok {
		id = field(rec, i)
	}
	c := NewCity(id, field(rec, cols["name"]), field(rec, cols["asciiname"]), field(rec, cols["country code"]), lat, lon, pop)
	c.Extra = make(map[string]string)
	for i, h := range header {
		k := strings.ToLower(strings.TrimSpace(h))
		switch k {
		case "", "geonameid", "name", "asciiname", "country code", "latitude", "longitude", "population":
			continue
		}
		c.Extra[k] = field(rec, i)
	}
	return c, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
