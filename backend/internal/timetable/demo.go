package timetable

// DemoSlots 演示数据：5A 班一周 8 节课，任意两节不在同一 (day, hour)
func DemoSlots(catalog *Catalog) []ScheduleSlot {
	slots := []ScheduleSlot{
		{ID: "demo-1", Day: 0, Hour: "08:00", Subject: "Mathématiques", Teacher: "Sophie Laurent", Room: "Salle 12", Class: "5A"},
		{ID: "demo-2", Day: 0, Hour: "09:00", Subject: "Français", Teacher: "Thomas Dubois", Room: "Salle 5", Class: "5A"},
		{ID: "demo-3", Day: 1, Hour: "10:00", Subject: "Anglais", Teacher: "Emma Wilson", Room: "Salle 8", Class: "5A"},
		{ID: "demo-4", Day: 1, Hour: "14:00", Subject: "Histoire-Géographie", Teacher: "Pierre Martin", Room: "Salle 15", Class: "5A"},
		{ID: "demo-5", Day: 2, Hour: "08:00", Subject: "SVT", Teacher: "Claire Bernard", Room: "Labo 2", Class: "5A"},
		{ID: "demo-6", Day: 3, Hour: "11:00", Subject: "Physique-Chimie", Teacher: "Marc Petit", Room: "Labo 1", Class: "5A"},
		{ID: "demo-7", Day: 3, Hour: "15:00", Subject: "EPS", Teacher: "Julien Roux", Room: "Gymnase", Class: "5A"},
		{ID: "demo-8", Day: 4, Hour: "09:00", Subject: "Arts Plastiques", Teacher: "Luc Moreau", Room: "Salle 20", Class: "5A"},
	}
	for i := range slots {
		slots[i].Color = catalog.ColorOf(slots[i].Subject)
	}
	return slots
}
