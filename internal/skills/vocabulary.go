package skills

// Vocabulary is the controlled set of skills known to the platform, in seed
// order. Soft skills first, hard skills after. Extraction results preserve
// this order.
var Vocabulary = []string{
	// Soft skills.
	"Pensamiento creativo", "Comunicación asertiva", "Gestión emocional",
	"Manejo de conflictos", "Empoderamiento personal", "Disciplina laboral",
	"Capacidad de análisis", "Responsabilidad social", "Etica profesional",
	"Honestidad", "Tolerancia a la frustración", "Aprendizaje continuo",
	"Orientación al servicio", "Paciencia", "Confianza interpersonal",
	"Cortesía", "Pensamiento lógico", "Sensibilidad cultural",
	"Autonomía", "Capacidad de adaptación", "Trabajo bajo presión",
	"Capacidad de escucha", "Planeación personal", "Gestión del cambio",
	"Toma de iniciativa", "Orientación al cliente", "Pensamiento positivo",
	"Capacidad de observación", "Confidencialidad", "Influencia y persuasión",
	"Manejo de prioridades", "Pensamiento organizado", "Gestión del tiempo personal",
	"Trabajo colaborativo", "Sentido de pertenencia", "Optimismo",
	"Autocontrol", "Capacidad de concentración", "Empatía social",
	"Escucha empática", "Respeto a la diversidad", "Manejo de la frustración",
	"Pensamiento sistémico", "Colaboración interdepartamental", "Gestión del conflicto",
	"Orientación a resultados", "Manejo del cambio organizacional", "Tolerancia",
	"Capacidad de negociación", "Capacidad de aprendizaje rápido", "Motivación personal",
	"Capacidad de liderazgo", "Asertividad", "Capacidad de autocrítica",
	"Trabajo ético", "Desarrollo personal", "Pensamiento estratégico personal",
	"Capacidad de mediación", "Respeto por las normas", "Responsabilidad colectiva",
	"Compromiso organizacional", "Solidaridad",
	// Hard skills.
	"Programación en Java", "Programación en Python", "SQL",
	"Git / Control de versiones", "Linux", "Docker", "Kubernetes",
	"HTML / CSS", "Spring Boot", "React.js", "Contabilidad financiera",
	"Análisis de estados financieros", "Gestión de presupuestos",
	"Auditoría interna", "Control de inventarios", "Planeación financiera",
	"Gestión de nómina", "Tributación básica", "Evaluación de proyectos",
	"Costos y presupuestos", "Marketing digital", "Copywriting",
	"SEO (posicionamiento en buscadores)", "Análisis de mercado",
	"Branding", "Relaciones públicas", "Planificación de campañas publicitarias",
	"Email marketing", "Gestión de redes sociales", "Atención al cliente",
}
