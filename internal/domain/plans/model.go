package plans

type Plan struct {
	ID          uint `gorm:"primaryKey"`
	Name        string
	Description string
	BasePrice   float64
	Interval    string // "monthly" | "one_off"
	Active      bool   `gorm:"not null;default:true"`
}
