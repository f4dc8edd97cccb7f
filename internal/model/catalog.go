package model

// Subjects is the canonical subject catalog the service accepts on upload
// and exposes as a filter dimension.
var Subjects = []string{
	// Computer Science & IT
	"Programming Languages", "Data Structures & Algorithms", "Object-Oriented Programming",
	"Operating Systems", "Database Management Systems", "Computer Networks",
	"Software Engineering", "Web Development", "Mobile Development",
	"Artificial Intelligence", "Machine Learning", "Deep Learning",
	"Natural Language Processing", "Computer Vision", "Cloud Computing",
	"Cybersecurity", "Internet of Things", "Embedded Systems", "Blockchain Technology",

	// Core Sciences & Mathematics
	"Mathematics", "Discrete Mathematics", "Linear Algebra", "Probability & Statistics",
	"Calculus", "Graph Theory", "Physics", "Chemistry", "Engineering Mechanics",
	"Thermodynamics", "Material Science", "Fluid Mechanics", "Electrical & Electronics Fundamentals",

	// General Engineering
	"Circuit Theory", "Control Systems", "Mechanical Design", "Manufacturing Processes",
	"Signals & Systems", "Microprocessors & Microcontrollers", "Renewable Energy",
	"Robotics", "VLSI Design", "Mechatronics", "Aerodynamics", "Automotive Engineering",

	// Management & Business
	"Principles of Management", "Organizational Behavior", "Business Communication",
	"Human Resource Management", "Marketing Management", "Financial Accounting",
	"Managerial Economics", "Operations Management", "Business Law", "Strategic Management",
	"Supply Chain Management", "Project Management", "Entrepreneurship", "International Business",
	"Leadership & Ethics", "Risk Management", "Decision Sciences", "Digital Marketing",
	"Brand Management", "Sales & Distribution Management",

	// Other Subjects
	"Biology", "English", "History", "Economics", "Psychology",
	"Philosophy", "Political Science", "Sociology", "Art", "Music", "Other",
}

// Semesters enumerates the valid semester values.
var Semesters = []string{"1", "2", "3", "4", "5", "6", "7", "8"}

// ValidSubject reports whether s is in the subject catalog.
func ValidSubject(s string) bool {
	for _, v := range Subjects {
		if v == s {
			return true
		}
	}
	return false
}

// ValidSemester reports whether s is a known semester value.
func ValidSemester(s string) bool {
	for _, v := range Semesters {
		if v == s {
			return true
		}
	}
	return false
}
