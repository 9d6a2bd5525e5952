package models

// Tier описывает платный тариф из каталога.
type Tier struct {
	Key        string `json:"key" yaml:"key"`                 // Ключ тарифа, например "7dias"
	Label      string `json:"label" yaml:"label"`             // Название для пользователя, например "7 dias"
	Price      string `json:"price" yaml:"price"`             // Цена в виде строки, например "R$6,00"
	PaymentURL string `json:"payment_url" yaml:"payment_url"` // Ссылка на оплату
}
