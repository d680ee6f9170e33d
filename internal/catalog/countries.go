package catalog

import "nuam/internal"

// DefaultCountries are the markets integrated in the regional exchange.
func DefaultCountries() []internal.Country {
	return []internal.Country{
		{
			Code:          "CHL",
			Name:          "Chile",
			Currency:      "CLP",
			ExchangeName:  "Bolsa de Santiago",
			SecuritiesLaw: "Ley 18.045",
			Summary:       "Principal mercado bursátil chileno, regulado por la CMF.",
		},
		{
			Code:          "COL",
			Name:          "Colombia",
			Currency:      "COP",
			ExchangeName:  "Bolsa de Valores de Colombia",
			SecuritiesLaw: "Ley 964/2005",
			Summary:       "Mercado colombiano integrado en la alianza del Pacífico.",
		},
		{
			Code:          "PER",
			Name:          "Perú",
			Currency:      "PEN",
			ExchangeName:  "Bolsa de Valores de Lima",
			SecuritiesLaw: "Ley 26702",
			Summary:       "Mercado peruano de valores con integración regional.",
		},
	}
}
