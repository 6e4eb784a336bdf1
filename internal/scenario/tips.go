package scenario

// Tips are the hints shown beneath the swing controls.
var Tips = []string{
	"Higher launch speeds have a greater home run probability.",
	"The ideal launch angle is between 20 and 25 degrees.",
	"Each park has different dimensions. Try hitting the ball towards the wall with the shortest distance and height.",
}
