// Package currency holds the closed catalog of supported currencies and the
// exchange-rate table the aggregation layer converts through.
package currency

import "strings"

// Currency is an immutable catalog entry. Formatting is the caller's
// concern; the conversion math only needs the code.
type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// catalog is the supported set, ordered by code. It is fixed at compile
// time; there is no runtime registration.
var catalog = []Currency{
	{"AED", "UAE Dirham", "د.إ"},
	{"AFN", "Afghan Afghani", "؋"},
	{"ALL", "Albanian Lek", "L"},
	{"AMD", "Armenian Dram", "֏"},
	{"ANG", "Netherlands Antillean Guilder", "ƒ"},
	{"AOA", "Angolan Kwanza", "Kz"},
	{"ARS", "Argentine Peso", "$"},
	{"AUD", "Australian Dollar", "A$"},
	{"AWG", "Aruban Florin", "ƒ"},
	{"AZN", "Azerbaijani Manat", "₼"},
	{"BAM", "Bosnian Convertible Mark", "KM"},
	{"BBD", "Barbadian Dollar", "$"},
	{"BDT", "Bangladeshi Taka", "৳"},
	{"BGN", "Bulgarian Lev", "лв"},
	{"BHD", "Bahraini Dinar", ".د.ب"},
	{"BIF", "Burundian Franc", "FBu"},
	{"BMD", "Bermudian Dollar", "$"},
	{"BND", "Brunei Dollar", "B$"},
	{"BOB", "Bolivian Boliviano", "Bs."},
	{"BRL", "Brazilian Real", "R$"},
	{"BSD", "Bahamian Dollar", "$"},
	{"BTN", "Bhutanese Ngultrum", "Nu."},
	{"BWP", "Botswana Pula", "P"},
	{"BYN", "Belarusian Ruble", "Br"},
	{"BZD", "Belize Dollar", "BZ$"},
	{"CAD", "Canadian Dollar", "C$"},
	{"CDF", "Congolese Franc", "FC"},
	{"CHF", "Swiss Franc", "CHF"},
	{"CLP", "Chilean Peso", "$"},
	{"CNY", "Chinese Yuan", "¥"},
	{"COP", "Colombian Peso", "$"},
	{"CRC", "Costa Rican Colón", "₡"},
	{"CUP", "Cuban Peso", "$"},
	{"CVE", "Cape Verdean Escudo", "$"},
	{"CZK", "Czech Koruna", "Kč"},
	{"DJF", "Djiboutian Franc", "Fdj"},
	{"DKK", "Danish Krone", "kr"},
	{"DOP", "Dominican Peso", "RD$"},
	{"DZD", "Algerian Dinar", "دج"},
	{"EGP", "Egyptian Pound", "E£"},
	{"ERN", "Eritrean Nakfa", "Nfk"},
	{"ETB", "Ethiopian Birr", "Br"},
	{"EUR", "Euro", "€"},
	{"FJD", "Fijian Dollar", "FJ$"},
	{"FKP", "Falkland Islands Pound", "£"},
	{"GBP", "British Pound", "£"},
	{"GEL", "Georgian Lari", "₾"},
	{"GHS", "Ghanaian Cedi", "₵"},
	{"GIP", "Gibraltar Pound", "£"},
	{"GMD", "Gambian Dalasi", "D"},
	{"GNF", "Guinean Franc", "FG"},
	{"GTQ", "Guatemalan Quetzal", "Q"},
	{"GYD", "Guyanese Dollar", "G$"},
	{"HKD", "Hong Kong Dollar", "HK$"},
	{"HNL", "Honduran Lempira", "L"},
	{"HTG", "Haitian Gourde", "G"},
	{"HUF", "Hungarian Forint", "Ft"},
	{"IDR", "Indonesian Rupiah", "Rp"},
	{"ILS", "Israeli New Shekel", "₪"},
	{"INR", "Indian Rupee", "₹"},
	{"IQD", "Iraqi Dinar", "ع.د"},
	{"IRR", "Iranian Rial", "﷼"},
	{"ISK", "Icelandic Króna", "kr"},
	{"JMD", "Jamaican Dollar", "J$"},
	{"JOD", "Jordanian Dinar", "د.ا"},
	{"JPY", "Japanese Yen", "¥"},
	{"KES", "Kenyan Shilling", "KSh"},
	{"KGS", "Kyrgyzstani Som", "с"},
	{"KHR", "Cambodian Riel", "៛"},
	{"KMF", "Comorian Franc", "CF"},
	{"KRW", "South Korean Won", "₩"},
	{"KWD", "Kuwaiti Dinar", "د.ك"},
	{"KYD", "Cayman Islands Dollar", "$"},
	{"KZT", "Kazakhstani Tenge", "₸"},
	{"LAK", "Lao Kip", "₭"},
	{"LBP", "Lebanese Pound", "ل.ل"},
	{"LKR", "Sri Lankan Rupee", "Rs"},
	{"LRD", "Liberian Dollar", "L$"},
	{"LSL", "Lesotho Loti", "L"},
	{"LYD", "Libyan Dinar", "ل.د"},
	{"MAD", "Moroccan Dirham", "د.م."},
	{"MDL", "Moldovan Leu", "L"},
	{"MGA", "Malagasy Ariary", "Ar"},
	{"MKD", "Macedonian Denar", "ден"},
	{"MMK", "Myanmar Kyat", "K"},
	{"MNT", "Mongolian Tögrög", "₮"},
	{"MOP", "Macanese Pataca", "MOP$"},
	{"MRU", "Mauritanian Ouguiya", "UM"},
	{"MUR", "Mauritian Rupee", "₨"},
	{"MVR", "Maldivian Rufiyaa", "Rf"},
	{"MWK", "Malawian Kwacha", "MK"},
	{"MXN", "Mexican Peso", "Mex$"},
	{"MYR", "Malaysian Ringgit", "RM"},
	{"MZN", "Mozambican Metical", "MT"},
	{"NAD", "Namibian Dollar", "N$"},
	{"NGN", "Nigerian Naira", "₦"},
	{"NIO", "Nicaraguan Córdoba", "C$"},
	{"NOK", "Norwegian Krone", "kr"},
	{"NPR", "Nepalese Rupee", "₨"},
	{"NZD", "New Zealand Dollar", "NZ$"},
	{"OMR", "Omani Rial", "ر.ع."},
	{"PAB", "Panamanian Balboa", "B/."},
	{"PEN", "Peruvian Sol", "S/"},
	{"PGK", "Papua New Guinean Kina", "K"},
	{"PHP", "Philippine Peso", "₱"},
	{"PKR", "Pakistani Rupee", "₨"},
	{"PLN", "Polish Złoty", "zł"},
	{"PYG", "Paraguayan Guaraní", "₲"},
	{"QAR", "Qatari Riyal", "ر.ق"},
	{"RON", "Romanian Leu", "lei"},
	{"RSD", "Serbian Dinar", "дин"},
	{"RUB", "Russian Ruble", "₽"},
	{"RWF", "Rwandan Franc", "FRw"},
	{"SAR", "Saudi Riyal", "ر.س"},
	{"SBD", "Solomon Islands Dollar", "SI$"},
	{"SCR", "Seychellois Rupee", "₨"},
	{"SDG", "Sudanese Pound", "ج.س."},
	{"SEK", "Swedish Krona", "kr"},
	{"SGD", "Singapore Dollar", "S$"},
	{"SHP", "Saint Helena Pound", "£"},
	{"SLE", "Sierra Leonean Leone", "Le"},
	{"SOS", "Somali Shilling", "Sh"},
	{"SRD", "Surinamese Dollar", "$"},
	{"SSP", "South Sudanese Pound", "£"},
	{"STN", "São Tomé and Príncipe Dobra", "Db"},
	{"SYP", "Syrian Pound", "£S"},
	{"SZL", "Swazi Lilangeni", "E"},
	{"THB", "Thai Baht", "฿"},
	{"TJS", "Tajikistani Somoni", "ЅМ"},
	{"TMT", "Turkmenistani Manat", "m"},
	{"TND", "Tunisian Dinar", "د.ت"},
	{"TOP", "Tongan Paʻanga", "T$"},
	{"TRY", "Turkish Lira", "₺"},
	{"TTD", "Trinidad and Tobago Dollar", "TT$"},
	{"TWD", "New Taiwan Dollar", "NT$"},
	{"TZS", "Tanzanian Shilling", "TSh"},
	{"UAH", "Ukrainian Hryvnia", "₴"},
	{"UGX", "Ugandan Shilling", "USh"},
	{"USD", "US Dollar", "$"},
	{"UYU", "Uruguayan Peso", "$U"},
	{"UZS", "Uzbekistani Soʻm", "сўм"},
	{"VES", "Venezuelan Bolívar", "Bs."},
	{"VND", "Vietnamese Đồng", "₫"},
	{"VUV", "Vanuatu Vatu", "VT"},
	{"WST", "Samoan Tālā", "WS$"},
	{"XAF", "Central African CFA Franc", "FCFA"},
	{"XCD", "East Caribbean Dollar", "EC$"},
	{"XOF", "West African CFA Franc", "CFA"},
	{"XPF", "CFP Franc", "₣"},
	{"YER", "Yemeni Rial", "﷼"},
	{"ZAR", "South African Rand", "R"},
	{"ZMW", "Zambian Kwacha", "ZK"},
}

var byCode = func() map[string]Currency {
	m := make(map[string]Currency, len(catalog))
	for _, c := range catalog {
		m[c.Code] = c
	}
	return m
}()

// Lookup returns the catalog entry for a code (case-insensitive).
func Lookup(code string) (Currency, bool) {
	c, ok := byCode[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// Supported reports whether a code is in the catalog.
func Supported(code string) bool {
	_, ok := Lookup(code)
	return ok
}

// All returns a copy of the catalog in code order.
func All() []Currency {
	out := make([]Currency, len(catalog))
	copy(out, catalog)
	return out
}
